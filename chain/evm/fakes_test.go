package evm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// rpcHandler answers one JSON-RPC method. It returns the result, or a non empty error message.
type rpcHandler func(params json.RawMessage) (result any, errMsg string)

// fakeNode is a JSON-RPC node answering the registered methods and counting every call.
type fakeNode struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
}

// newFakeNode returns a node serving eth_chainId as chainIDHex. It is closed when the test ends.
func newFakeNode(t *testing.T, chainIDHex string) *fakeNode {
	t.Helper()

	n := &fakeNode{
		handlers: map[string]rpcHandler{
			"eth_chainId": func(json.RawMessage) (any, string) { return chainIDHex, "" },
		},
		calls: map[string]int{},
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)

	return n
}

func (n *fakeNode) handle(method string, h rpcHandler) *fakeNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h

	return n
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[method]
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	} else if result, errMsg := h(req.Params); errMsg != "" {
		resp["error"] = map[string]any{"code": -32000, "message": errMsg}
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
