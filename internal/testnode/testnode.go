/*
Package testnode implements a fake Substrate node answering websocket
JSON-RPC requests with predefined handlers. It's used in tests only.
*/
package testnode

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/stretchr/testify/require"
)

const (
	// Genesis is the genesis hash returned by Handshake.
	Genesis = "0x8f3b4ef2bb9ff5d4bc1b3b0e47c9c7f8d1d2a5a4f3e9b47d1ba5c2c4d6e8f0a1"
	// Metadata is the (minimal valid) metadata returned by Handshake.
	Metadata = "0x6d6574610e00"
	// SpecVersion and TxVersion are the runtime versions returned by
	// Handshake.
	SpecVersion = 100
	TxVersion   = 1

	extrinsicUpdateMethod = "author_extrinsicUpdate"
)

// Reply is what the node sends for a request: a result or an error followed
// by notifications.
type Reply struct {
	Result any
	Err    *chainrpc.Error
	Then   []chainrpc.Notification
}

// Handler answers a single request.
type Handler func(params []json.RawMessage) Reply

// Request is a request received by the node.
type Request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Node is a running fake node.
type Node struct {
	*httptest.Server

	lock     sync.Mutex
	handlers map[string]Handler
	requests []Request
}

// Result returns a handler always replying with v.
func Result(v any) Handler {
	return func([]json.RawMessage) Reply { return Reply{Result: v} }
}

// Error returns a handler always replying with the given error.
func Error(code int64, message, data string) Handler {
	return func([]json.RawMessage) Reply { return Reply{Err: chainrpc.NewError(code, message, data)} }
}

// Handshake returns handlers for the requests made by rpcclient.WSClient.Init.
func Handshake() map[string]Handler {
	return map[string]Handler{
		"chain_getBlockHash": Result(Genesis),
		"state_getRuntimeVersion": Result(map[string]any{
			"specName":           "node-template",
			"implName":           "node-template",
			"authoringVersion":   1,
			"specVersion":        SpecVersion,
			"implVersion":        1,
			"apis":               [][]any{{"0xdf6acb689907609b", 3}},
			"transactionVersion": TxVersion,
		}),
		"state_getMetadata": Result(Metadata),
		"system_properties": Result(map[string]any{"ss58Format": 42, "tokenDecimals": 12, "tokenSymbol": "UNIT"}),
	}
}

// WithHandshake returns Handshake handlers extended (or overridden) by h.
func WithHandshake(h map[string]Handler) map[string]Handler {
	all := Handshake()
	for k, v := range h {
		all[k] = v
	}
	return all
}

// ExtrinsicUpdate makes a transaction status notification for the
// subscription.
func ExtrinsicUpdate(sub string, upd any) chainrpc.Notification {
	res, _ := json.Marshal(upd)
	return chainrpc.Notification{
		JSONRPC: chainrpc.JSONRPCVersion,
		Method:  extrinsicUpdateMethod,
		Params:  chainrpc.NotificationParams{Subscription: chainrpc.SubscriptionID(sub), Result: res},
	}
}

// New starts a node answering requests with handlers, unknown methods get
// the method-not-found error. The node is stopped on test cleanup.
func New(t testing.TB, handlers map[string]Handler) *Node {
	n := &Node{handlers: handlers}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/ws" || req.Method != "GET" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var upgrader = websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, req, nil)
		require.NoError(t, err)
		defer ws.Close()
		for {
			_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, p, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var r Request
			if err := json.Unmarshal(p, &r); err != nil {
				t.Errorf("cannot decode request: %s", p)
				return
			}
			reply := n.handle(r)
			resp := map[string]any{"jsonrpc": "2.0", "id": r.ID}
			if reply.Err != nil {
				resp["error"] = reply.Err
			} else {
				resp["result"] = reply.Result
			}
			_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := ws.WriteJSON(resp); err != nil {
				return
			}
			for _, msg := range reply.Then {
				if err := ws.WriteJSON(msg); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(n.Close)
	return n
}

func (n *Node) handle(r Request) Reply {
	n.lock.Lock()
	n.requests = append(n.requests, r)
	h, ok := n.handlers[r.Method]
	n.lock.Unlock()
	if !ok {
		return Reply{Err: chainrpc.NewError(chainrpc.MethodNotFoundCode, "Method not found", "")}
	}
	return h(r.Params)
}

// Requests returns requests received so far with the given method, all of
// them if method is empty.
func (n *Node) Requests(method string) []Request {
	n.lock.Lock()
	defer n.lock.Unlock()
	var res []Request
	for _, r := range n.requests {
		if method == "" || r.Method == method {
			res = append(res, r)
		}
	}
	return res
}

// WSURL returns the websocket endpoint of the node.
func (n *Node) WSURL() string {
	return HTTPURLtoWS(n.URL)
}

// HTTPURLtoWS converts an httptest server URL into the node websocket
// endpoint.
func HTTPURLtoWS(url string) string {
	return "ws" + strings.TrimPrefix(url, "http") + "/ws"
}
