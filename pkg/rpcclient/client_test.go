package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nspcc-dev/subgo/internal/testnode"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"github.com/nspcc-dev/subgo/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, node *testnode.Node, opts Options) *WSClient {
	c, err := New(context.Background(), node.WSURL(), opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func newInitializedClient(t *testing.T, handlers map[string]testnode.Handler, opts Options) *WSClient {
	c := newTestClient(t, testnode.New(t, testnode.WithHandshake(handlers)), opts)
	require.NoError(t, c.Init())
	return c
}

func TestNewDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := New(context.Background(), testnode.HTTPURLtoWS(srv.URL), Options{DialTimeout: time.Second})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestInit(t *testing.T) {
	c := newTestClient(t, testnode.New(t, testnode.Handshake()), Options{})

	_, err := c.GenesisHash()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.CallRPC("system", "chain")
	require.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, c.Init())
	g, err := c.GenesisHash()
	require.NoError(t, err)
	assert.Equal(t, testnode.Genesis, g.String())

	v, err := c.RuntimeVersion()
	require.NoError(t, err)
	assert.Equal(t, "node-template", v.SpecName)
	assert.Equal(t, uint32(100), v.SpecVersion)
	assert.Equal(t, uint32(1), v.TransactionVersion)
	require.Equal(t, 1, len(v.APIs))
	assert.Equal(t, uint32(3), v.APIs[0].Version)

	meta, err := c.Metadata()
	require.NoError(t, err)
	assert.Equal(t, testnode.Metadata, util.Bytes(meta).String())

	props, err := c.Properties()
	require.NoError(t, err)
	require.NotNil(t, props.SS58Format)
	assert.Equal(t, uint16(42), *props.SS58Format)
	assert.Equal(t, []string{"UNIT"}, props.TokenSymbol)
	assert.Equal(t, []uint32{12}, props.TokenDecimals)
}

func TestInitOnce(t *testing.T) {
	node := testnode.New(t, testnode.Handshake())
	c := newTestClient(t, node, Options{})

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- c.Init() }()
	}
	var ok, again int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyInitialized)
		again++
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, again)
	require.Equal(t, 1, len(node.Requests("chain_getBlockHash")))

	require.ErrorIs(t, c.Init(), ErrAlreadyInitialized)
}

func TestInitWithoutProperties(t *testing.T) {
	h := testnode.Handshake()
	delete(h, "system_properties")
	c := newTestClient(t, testnode.New(t, h), Options{})
	require.NoError(t, c.Init())
	props, err := c.Properties()
	require.NoError(t, err)
	assert.Nil(t, props.SS58Format)
}

func TestInitFailures(t *testing.T) {
	t.Run("bad metadata", func(t *testing.T) {
		h := testnode.Handshake()
		h["state_getMetadata"] = testnode.Result("0x00000000")
		c := newTestClient(t, testnode.New(t, h), Options{})
		var connErr *ConnectionError
		require.ErrorAs(t, c.Init(), &connErr)
		_, err := c.GenesisHash()
		require.ErrorIs(t, err, ErrNotInitialized)
	})
	t.Run("no genesis", func(t *testing.T) {
		h := testnode.Handshake()
		delete(h, "chain_getBlockHash")
		c := newTestClient(t, testnode.New(t, h), Options{})
		err := c.Init()
		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		var rpcErr *chainrpc.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, int64(chainrpc.MethodNotFoundCode), rpcErr.Code)
	})
}

func helloMethods() []MethodDescriptor {
	return []MethodDescriptor{
		{Namespace: "hello", Name: "five", Type: "u32"},
		{Namespace: "hello", Name: "seven", Type: "u32"},
		{Namespace: "silly", Name: "double", Params: []Param{{Name: "val", Type: "u32"}}, Type: "u32"},
		{Namespace: "sumStorage", Name: "getSum", Type: "u32"},
	}
}

func TestCallRPC(t *testing.T) {
	c := newInitializedClient(t, map[string]testnode.Handler{
		"hello_seven": testnode.Result(7),
		"silly_double": func(params []json.RawMessage) testnode.Reply {
			var n uint32
			if len(params) != 1 || json.Unmarshal(params[0], &n) != nil {
				return testnode.Reply{Err: chainrpc.NewError(chainrpc.InvalidParamsCode, "Invalid params", "")}
			}
			return testnode.Reply{Result: 2 * n}
		},
		"sumStorage_getSum": testnode.Result("seven"),
		"system_chain":      testnode.Result("Development"),
	}, Options{Methods: helloMethods()})

	v, err := c.CallRPC("hello", "seven")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	v, err = c.CallRPC("silly", "double", 21)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	v, err = c.CallRPC("system", "chain")
	require.NoError(t, err)
	assert.Equal(t, "Development", v)

	t.Run("unregistered", func(t *testing.T) {
		_, err := c.CallRPC("hello", "eight")
		require.ErrorIs(t, err, ErrMethodNotFound)
	})
	t.Run("unknown to node", func(t *testing.T) {
		_, err := c.CallRPC("hello", "five")
		require.ErrorIs(t, err, ErrMethodNotFound)
		var rpcErr *chainrpc.Error
		require.ErrorAs(t, err, &rpcErr)
	})
	t.Run("argument count", func(t *testing.T) {
		_, err := c.CallRPC("silly", "double")
		require.ErrorIs(t, err, ErrInvalidParams)
		_, err = c.CallRPC("hello", "seven", 1)
		require.ErrorIs(t, err, ErrInvalidParams)
	})
	t.Run("bad argument", func(t *testing.T) {
		_, err := c.CallRPC("silly", "double", "not a number")
		require.ErrorIs(t, err, ErrInvalidParams)
	})
	t.Run("bad result", func(t *testing.T) {
		_, err := c.CallRPC("sumStorage", "getSum")
		require.ErrorIs(t, err, ErrDecodeFailure)
	})

	// Session is still usable.
	v, err = c.CallRPC("hello", "seven")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)
}

func TestRegistration(t *testing.T) {
	c := newTestClient(t, testnode.New(t, testnode.Handshake()), Options{Methods: helloMethods()})

	err := c.RegisterMethod(MethodDescriptor{Namespace: "hello", Name: "seven", Type: "u32"})
	require.ErrorIs(t, err, ErrDuplicateMethod)
	require.Error(t, c.RegisterMethod(MethodDescriptor{Namespace: "hello", Name: "nine", Type: "Vec<u8"}))
	require.Error(t, c.RegisterMethod(MethodDescriptor{Name: "nine", Type: "u32"}))

	// Built-in one can be overridden once.
	require.NoError(t, c.RegisterMethod(MethodDescriptor{Namespace: "system", Name: "chain", Type: "Bytes"}))
	err = c.RegisterMethod(MethodDescriptor{Namespace: "system", Name: "chain", Type: "Text"})
	require.ErrorIs(t, err, ErrDuplicateMethod)
	d, ok := c.Method("system", "chain")
	require.True(t, ok)
	assert.Equal(t, "Bytes", d.Type)

	thing := StorageDescriptor{Module: "SumStorage", Item: "Thing1", Type: "u32"}
	require.NoError(t, c.RegisterStorage(thing))
	require.ErrorIs(t, c.RegisterStorage(thing), ErrDuplicateStorage)
	require.Error(t, c.RegisterStorage(StorageDescriptor{
		Module:  "Some",
		Item:    "Map",
		Hashers: []hash.Hasher{hash.Twox64Concat},
		Type:    "u32",
	}))

	require.NoError(t, c.Init())
	err = c.RegisterMethod(MethodDescriptor{Namespace: "hello", Name: "nine", Type: "u32"})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	err = c.RegisterStorage(StorageDescriptor{Module: "SumStorage", Item: "Thing2", Type: "u32"})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestQueryStorage(t *testing.T) {
	thing1 := util.Bytes(append(hash.Twox128([]byte("SumStorage")), hash.Twox128([]byte("Thing1"))...)).String()
	thing2 := util.Bytes(append(hash.Twox128([]byte("SumStorage")), hash.Twox128([]byte("Thing2"))...)).String()
	c := newInitializedClient(t, map[string]testnode.Handler{
		"state_getStorage": func(params []json.RawMessage) testnode.Reply {
			var key string
			require.NoError(t, json.Unmarshal(params[0], &key))
			switch key {
			case thing1:
				return testnode.Reply{Result: "0x07000000"}
			case thing2:
				return testnode.Reply{Result: nil}
			}
			return testnode.Reply{Result: "0x00"}
		},
	}, Options{Storage: []StorageDescriptor{
		{Module: "SumStorage", Item: "Thing1", Type: "u32"},
		{Module: "SumStorage", Item: "Thing2", Type: "u32"},
		{Module: "SumStorage", Item: "Broken", Type: "u64"},
	}})

	key, err := c.StorageKey("SumStorage", "Thing1")
	require.NoError(t, err)
	assert.Equal(t, thing1, util.Bytes(key).String())

	v, err := c.QueryStorage("SumStorage", "Thing1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = c.QueryStorage("SumStorage", "Thing2")
	require.ErrorIs(t, err, ErrMissingValue)

	v, err = c.QueryStorageOptional("SumStorage", "Thing2")
	require.NoError(t, err)
	assert.Equal(t, codec.None{}, v)

	v, err = c.QueryStorageOptional("SumStorage", "Thing1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = c.QueryStorage("SumStorage", "Broken")
	require.ErrorIs(t, err, ErrDecodeFailure)

	_, err = c.QueryStorage("SumStorage", "Thing3")
	require.ErrorIs(t, err, ErrStorageNotFound)

	_, err = c.QueryStorage("SumStorage", "Thing1", 1)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestGetAccountNonce(t *testing.T) {
	alice, err := keys.NewPrivateKeyFromURI("//Alice")
	require.NoError(t, err)
	bob, err := keys.NewPrivateKeyFromURI("//Bob")
	require.NoError(t, err)

	accountKey := func(id keys.AccountID) string {
		k := append(hash.Twox128([]byte("System")), hash.Twox128([]byte("Account"))...)
		h, err := hash.Blake2_128Concat.Hash(id[:])
		require.NoError(t, err)
		return util.Bytes(append(k, h...)).String()
	}
	aliceKey := accountKey(alice.AccountID())
	// nonce 5, consumers 0, providers 1, sufficients 0, zero balances.
	info := "0x05000000" + "00000000" + "01000000" + "00000000" + strings.Repeat("00", 64)

	c := newInitializedClient(t, map[string]testnode.Handler{
		"state_getStorage": func(params []json.RawMessage) testnode.Reply {
			var key string
			require.NoError(t, json.Unmarshal(params[0], &key))
			if key == aliceKey {
				return testnode.Reply{Result: info}
			}
			return testnode.Reply{Result: nil}
		},
	}, Options{})

	key, err := c.StorageKey("System", "Account", alice.AccountID())
	require.NoError(t, err)
	assert.Equal(t, aliceKey, util.Bytes(key).String())

	n, err := c.GetAccountNonce(alice.AccountID())
	require.NoError(t, err)
	assert.Equal(t, uint32(5), n)

	n, err = c.GetAccountNonce(bob.AccountID())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)
}

func collect(t *testing.T, sub *txstatus.Subscription) []txstatus.State {
	var states []txstatus.State
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return states
			}
			states = append(states, ev.State)
		case <-timeout:
			t.Fatal("subscription is not finished")
		}
	}
}

func TestSubmitExtrinsic(t *testing.T) {
	ext := []byte{0x0c, 0x84, 0x00, 0x01}
	block := "0x" + strings.Repeat("11", 32)
	c := newInitializedClient(t, map[string]testnode.Handler{
		"author_submitAndWatchExtrinsic": func(params []json.RawMessage) testnode.Reply {
			var got util.Bytes
			require.NoError(t, json.Unmarshal(params[0], &got))
			require.Equal(t, ext, []byte(got))
			return testnode.Reply{Result: "sub1", Then: []chainrpc.Notification{
				testnode.ExtrinsicUpdate("sub1", "ready"),
				testnode.ExtrinsicUpdate("sub1", map[string]any{"inBlock": block}),
				testnode.ExtrinsicUpdate("sub1", map[string]any{"finalized": block}),
			}}
		},
	}, Options{})

	sub, err := c.SubmitExtrinsic(ext)
	require.NoError(t, err)
	assert.Equal(t, hash.Blake2b256(ext), sub.Hash)

	ev, err := sub.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, txstatus.Finalized, ev.State)
	assert.Equal(t, block, ev.Block.String())
	assert.Equal(t, []txstatus.State{txstatus.Submitted, txstatus.InBlock, txstatus.Finalized}, collect(t, sub))
	require.NoError(t, sub.Err())
}

func TestSubmitExtrinsicRejected(t *testing.T) {
	var testCases = []struct {
		name string
		err  *chainrpc.Error
		is   error
	}{
		{"stale nonce", chainrpc.NewError(chainrpc.InvalidTransactionCode, "Invalid Transaction", "Transaction is outdated"), txstatus.ErrStaleNonce},
		{"bad proof", chainrpc.NewError(chainrpc.InvalidTransactionCode, "Invalid Transaction", "Transaction has a bad signature"), txstatus.ErrValidationFailed},
		{"too low priority", chainrpc.NewError(chainrpc.TooLowPriorityCode, "Priority is too low", ""), txstatus.ErrStaleNonce},
		{"already imported", chainrpc.NewError(chainrpc.AlreadyImportedCode, "Transaction Already Imported", ""), txstatus.ErrValidationFailed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newInitializedClient(t, map[string]testnode.Handler{
				"author_submitAndWatchExtrinsic": func([]json.RawMessage) testnode.Reply { return testnode.Reply{Err: tc.err} },
			}, Options{})
			sub, err := c.SubmitExtrinsic([]byte{1, 2, 3})
			require.NoError(t, err)

			ev, err := sub.Wait(context.Background())
			require.ErrorIs(t, err, tc.is)
			var rpcErr *chainrpc.Error
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, tc.err.Code, rpcErr.Code)
			assert.Equal(t, txstatus.Invalid, ev.State)
			assert.Equal(t, []txstatus.State{txstatus.Submitted, txstatus.Invalid}, collect(t, sub))
		})
	}
}

func TestSubmitUnsubscribe(t *testing.T) {
	unwatched := make(chan string, 1)
	c := newInitializedClient(t, map[string]testnode.Handler{
		"author_submitAndWatchExtrinsic": testnode.Result("sub2"),
		"author_unwatchExtrinsic": func(params []json.RawMessage) testnode.Reply {
			var id string
			require.NoError(t, json.Unmarshal(params[0], &id))
			unwatched <- id
			return testnode.Reply{Result: true}
		},
	}, Options{})
	sub, err := c.SubmitExtrinsic([]byte{1})
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case id := <-unwatched:
		assert.Equal(t, "sub2", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no author_unwatchExtrinsic request")
	}
	<-sub.Done()
	require.NoError(t, sub.Err())
}

func TestClose(t *testing.T) {
	c := newInitializedClient(t, map[string]testnode.Handler{
		"author_submitAndWatchExtrinsic": testnode.Result(1),
		"hello_seven":                    testnode.Result(7),
	}, Options{Methods: helloMethods()})
	sub, err := c.SubmitExtrinsic([]byte{1})
	require.NoError(t, err)
	// Make sure the subscription is confirmed.
	_, err = c.CallRPC("hello", "seven")
	require.NoError(t, err)

	c.Close()
	c.Close()

	_, err = sub.Wait(context.Background())
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.ErrorIs(t, sub.Err(), ErrConnectionClosed)

	_, err = c.CallRPC("hello", "seven")
	require.ErrorIs(t, err, ErrConnectionClosed)
	_, err = c.SubmitExtrinsic([]byte{2})
	require.True(t, errors.Is(err, ErrConnectionClosed))
}

func TestRequestTimeout(t *testing.T) {
	c := newInitializedClient(t, map[string]testnode.Handler{
		"hello_seven": func([]json.RawMessage) testnode.Reply {
			time.Sleep(300 * time.Millisecond)
			return testnode.Reply{Result: 7}
		},
	}, Options{Methods: helloMethods(), RequestTimeout: 100 * time.Millisecond})
	_, err := c.CallRPC("hello", "seven")
	require.ErrorIs(t, err, ErrRequestTimeout)
}
