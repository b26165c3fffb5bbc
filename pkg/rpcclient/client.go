/*
Package rpcclient implements an extensible websocket JSON-RPC client for
Substrate-based nodes. Custom types, RPC methods and storage items are
registered before the handshake, after that the client offers generic calls
(CallRPC), storage queries (QueryStorage) and transaction submission with
status tracking (SubmitExtrinsic).
*/
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"github.com/nspcc-dev/subgo/pkg/typereg"
	"github.com/nspcc-dev/subgo/pkg/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
)

// metadataMagic is the prefix of runtime metadata ("meta").
var metadataMagic = []byte{0x6d, 0x65, 0x74, 0x61}

// Options defines options for the RPC client. All values are optional, zero
// durations are replaced with a default of 4 seconds.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// Types is the custom type schema, it overrides built-in definitions.
	Types typereg.Schema
	// Methods and Storage are registered in New, so they're known before
	// any request.
	Methods []MethodDescriptor
	Storage []StorageDescriptor
	// CacheSize is the number of parsed type expressions to keep.
	CacheSize int
	Logger    *zap.Logger
}

// WSClient is a websocket client bound to a single node connection. It's
// thread-safe, requests are multiplexed over the connection by their IDs.
type WSClient struct {
	ctx      context.Context
	endpoint string
	opts     Options
	log      *zap.Logger
	ws       *websocket.Conn
	registry *codec.Registry

	requestF func(*chainrpc.Request) (*chainrpc.Response, error)

	latestReqID *atomic.Uint64
	// getNextRequestID returns an ID to be used for the subsequent request
	// creation. It's a field so that tests can have predictable IDs.
	getNextRequestID func() uint64

	// done is closed when the reader exits (connection is gone).
	done      chan struct{}
	requests  chan *chainrpc.Request
	shutdown  chan struct{}
	closeOnce sync.Once

	respLock      sync.Mutex
	closed        bool
	pending       map[uint64]*pendingRequest
	subscriptions map[chainrpc.SubscriptionID]*txstatus.Subscription
	subIDs        map[uuid.UUID]chainrpc.SubscriptionID

	tableLock sync.RWMutex
	methods   map[string]MethodDescriptor
	userMeths map[string]bool
	storage   map[string]StorageDescriptor
	userStors map[string]bool

	// initLock serializes handshakes.
	initLock  sync.Mutex
	cacheLock sync.RWMutex
	// cache stores node related information obtained during Init.
	cache cache
}

// pendingRequest is either a regular request waiting for the response or a
// transaction submission waiting for the subscription ID.
type pendingRequest struct {
	ch  chan *chainrpc.Response
	sub *txstatus.Subscription
}

type cache struct {
	initDone   bool
	genesis    util.Hash
	version    chainrpc.RuntimeVersion
	metadata   []byte
	properties chainrpc.ChainProperties
}

// New returns a new WSClient ready to use (with established websocket
// connection) but not yet initialized, registering more descriptors is
// possible until Init is called. Dial errors are returned as
// *ConnectionError.
func New(ctx context.Context, endpoint string, opts Options) (*WSClient, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	reg, err := codec.NewRegistry(opts.Types, opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("bad type schema: %w", err)
	}
	c := &WSClient{
		ctx:           ctx,
		endpoint:      endpoint,
		opts:          opts,
		log:           opts.Logger.With(zap.String("endpoint", endpoint)),
		registry:      reg,
		latestReqID:   atomic.NewUint64(0),
		done:          make(chan struct{}),
		requests:      make(chan *chainrpc.Request),
		shutdown:      make(chan struct{}),
		pending:       make(map[uint64]*pendingRequest),
		subscriptions: make(map[chainrpc.SubscriptionID]*txstatus.Subscription),
		subIDs:        make(map[uuid.UUID]chainrpc.SubscriptionID),
		methods:       make(map[string]MethodDescriptor),
		userMeths:     make(map[string]bool),
		storage:       make(map[string]StorageDescriptor),
		userStors:     make(map[string]bool),
	}
	c.getNextRequestID = c.getRequestID
	c.requestF = c.makeWsRequest
	for _, d := range builtinMethods {
		c.methods[d.key()] = d
	}
	for _, d := range builtinStorage {
		c.storage[d.key()] = d
	}
	for _, d := range opts.Methods {
		if err := c.RegisterMethod(d); err != nil {
			return nil, err
		}
	}
	for _, d := range opts.Storage {
		if err := c.RegisterStorage(d); err != nil {
			return nil, err
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	ws, resp, err := dialer.DialContext(dialCtx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	c.ws = ws
	go c.wsReader()
	go c.wsWriter()
	return c, nil
}

func (c *WSClient) getRequestID() uint64 {
	return c.latestReqID.Inc()
}

// Init performs the handshake: it fetches the genesis hash, runtime version,
// metadata and chain properties (optional) and closes descriptor
// registration. Failures are returned as *ConnectionError. It can only
// succeed once, subsequent (or concurrent) calls get ErrAlreadyInitialized.
func (c *WSClient) Init() error {
	c.initLock.Lock()
	defer c.initLock.Unlock()
	if c.isInitialized() {
		return ErrAlreadyInitialized
	}
	var (
		genesis util.Hash
		version chainrpc.RuntimeVersion
		meta    util.Bytes
		props   chainrpc.ChainProperties
	)
	fail := func(err error) error {
		return &ConnectionError{Endpoint: c.endpoint, Err: err}
	}
	if err := c.performRequestInto("chain_getBlockHash", []any{0}, &genesis); err != nil {
		return fail(fmt.Errorf("failed to get genesis hash: %w", err))
	}
	if err := c.performRequestInto("state_getRuntimeVersion", nil, &version); err != nil {
		return fail(fmt.Errorf("failed to get runtime version: %w", err))
	}
	if err := c.performRequestInto("state_getMetadata", nil, &meta); err != nil {
		return fail(fmt.Errorf("failed to get metadata: %w", err))
	}
	if !bytes.HasPrefix(meta, metadataMagic) {
		return fail(fmt.Errorf("invalid metadata magic %x", meta[:min(len(meta), len(metadataMagic))]))
	}
	if err := c.performRequestInto("system_properties", nil, &props); err != nil {
		c.log.Debug("chain properties are not available", zap.Error(err))
		props = chainrpc.ChainProperties{}
	}

	c.tableLock.Lock()
	c.cacheLock.Lock()
	c.cache = cache{
		initDone:   true,
		genesis:    genesis,
		version:    version,
		metadata:   meta,
		properties: props,
	}
	c.cacheLock.Unlock()
	c.tableLock.Unlock()

	c.log.Info("connected to node",
		zap.Stringer("genesis", genesis),
		zap.String("spec", version.SpecName),
		zap.Uint32("spec_version", version.SpecVersion),
		zap.Uint32("tx_version", version.TransactionVersion))
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (c *WSClient) isInitialized() bool {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.initDone
}

func (c *WSClient) checkInit() error {
	if !c.isInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// GenesisHash returns the genesis block hash obtained during Init.
func (c *WSClient) GenesisHash() (util.Hash, error) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	if !c.cache.initDone {
		return util.Hash{}, ErrNotInitialized
	}
	return c.cache.genesis, nil
}

// RuntimeVersion returns the runtime version obtained during Init.
func (c *WSClient) RuntimeVersion() (chainrpc.RuntimeVersion, error) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	if !c.cache.initDone {
		return chainrpc.RuntimeVersion{}, ErrNotInitialized
	}
	return c.cache.version, nil
}

// Metadata returns a copy of raw runtime metadata obtained during Init.
func (c *WSClient) Metadata() ([]byte, error) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	if !c.cache.initDone {
		return nil, ErrNotInitialized
	}
	return bytes.Clone(c.cache.metadata), nil
}

// Properties returns chain properties obtained during Init, they're empty if
// the node doesn't provide them.
func (c *WSClient) Properties() (chainrpc.ChainProperties, error) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	if !c.cache.initDone {
		return chainrpc.ChainProperties{}, ErrNotInitialized
	}
	return c.cache.properties, nil
}

// Registry returns the type registry used by the client.
func (c *WSClient) Registry() *codec.Registry {
	return c.registry
}

// Close closes connection to the remote side rendering this client instance
// unusable. All pending requests and active subscriptions end with
// ErrConnectionClosed.
func (c *WSClient) Close() {
	// Closing shutdown channel sends a signal to wsWriter to break out of the
	// loop. In doing so it does ws.Close() closing the network connection
	// which in turn makes wsReader receive an error from ws.ReadJSON() and
	// also break out of the loop closing c.done channel in its shutdown
	// sequence.
	c.closeOnce.Do(func() { close(c.shutdown) })
	<-c.done
}

// performRequest sends a request and returns raw result, it's nil (or
// "null") for null results. Node errors are returned as *chainrpc.Error.
func (c *WSClient) performRequest(method string, p []any) (json.RawMessage, error) {
	if p == nil {
		p = []any{}
	}
	var r = chainrpc.Request{
		JSONRPC: chainrpc.JSONRPCVersion,
		Method:  method,
		Params:  p,
		ID:      c.getNextRequestID(),
	}

	start := time.Now()
	raw, err := c.requestF(&r)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if raw != nil && raw.Error != nil {
		countRequest(method, outcomeNodeError)
		return nil, raw.Error
	} else if err != nil {
		countRequest(method, outcomeTransportError)
		return nil, err
	}
	countRequest(method, outcomeOK)
	return raw.Result, nil
}

// performRequestInto is performRequest unmarshaling the result into v.
func (c *WSClient) performRequestInto(method string, p []any, v any) error {
	raw, err := c.performRequest(method, p)
	if err != nil {
		return err
	}
	if isNull(raw) {
		return fmt.Errorf("no result returned for %s", method)
	}
	return json.Unmarshal(raw, v)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
