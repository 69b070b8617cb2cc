package txstore

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/pkg/logger"
)

var (
	testTo      = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testCreator = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

// newServer starts a backend answering with handler and returns a client logged in with
// "test-token".
func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", WithToken("test-token"), WithLogger(logger.Test(t)), WithTimeout(2*time.Second))
	require.NoError(t, err)

	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	assert.NoError(t, err)
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	_, err := NewClient("")
	require.ErrorContains(t, err, "api base url is required")

	c, err := NewClient("http://localhost:8080/", WithToken("abc"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.http.BaseURL)
	assert.Equal(t, DefaultTimeout, c.http.GetClient().Timeout)
	assert.Equal(t, "abc", c.Token())

	c.SetToken("def")
	assert.Equal(t, "def", c.Token())
}

func TestClient_Login(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "login must not send a token")

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testCreator.Hex(), body["address"])
		assert.Equal(t, "2026-01-02T03:04:05.000Z", body["login_at"])
		assert.Equal(t, "0xdead", body["signature"])

		writeJSON(t, w, http.StatusOK, `{"code":0,"data":{"token":"fresh-token"}}`)
	})

	token, err := c.Login(t.Context(), LoginRequest{
		Address:   testCreator,
		LoginAt:   "2026-01-02T03:04:05.000Z",
		Signature: "0xdead",
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, "fresh-token", c.Token())
}

func TestClient_Login_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "error in envelope",
			status:  http.StatusOK,
			body:    `{"code":1,"error":{"code":1001,"message":"signature expired"}}`,
			wantErr: "login failed: signature expired",
		},
		{
			name:    "no token",
			status:  http.StatusOK,
			body:    `{"code":0,"data":{}}`,
			wantErr: "backend returned no token",
		},
		{
			name:    "message body",
			status:  http.StatusBadRequest,
			body:    `{"message":"bad signature"}`,
			wantErr: "login failed: bad signature",
		},
		{
			name:    "no message",
			status:  http.StatusInternalServerError,
			body:    `{}`,
			wantErr: "request failed with status code 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			})

			_, err := c.Login(t.Context(), LoginRequest{Address: testCreator})
			require.ErrorContains(t, err, tt.wantErr)
			assert.Equal(t, "test-token", c.Token())
		})
	}
}

func TestClient_Create(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tx", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"to":        testTo.Hex(),
			"data":      "0x0d582f13",
			"value":     "0",
			"nonce":     float64(7),
			"signature": "0x0102",
		}, body)

		writeJSON(t, w, http.StatusOK, `{"code":0,"success":true,"data":{"id":42}}`)
	})

	id, err := c.Create(t.Context(), NewTransaction{
		To:        testTo,
		Data:      []byte{0x0d, 0x58, 0x2f, 0x13},
		Nonce:     7,
		Signature: []byte{0x01, 0x02},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestClient_List(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		give      Query
		wantQuery map[string]string
	}{
		{
			name:      "all statuses",
			give:      Query{Page: 1, PageSize: 10, Status: multisig.StatusAll},
			wantQuery: map[string]string{"page": "1", "pageSize": "10"},
		},
		{
			name:      "by status and id",
			give:      Query{Page: 2, PageSize: 5, ID: "42", Status: int(multisig.StatusReady)},
			wantQuery: map[string]string{"page": "2", "pageSize": "5", "id": "42", "status": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/txs", r.URL.Path)

				got := map[string]string{}
				for k := range r.URL.Query() {
					got[k] = r.URL.Query().Get(k)
				}
				assert.Equal(t, tt.wantQuery, got)

				writeJSON(t, w, http.StatusOK, `{"code":0,"success":true,"data":{"total":11,"rows":[
					{"id":42,"to":"0x5fbdb2315678afecb367f032d93f642f64180aa3","value":"1000",
					 "data":"0x0d582f13","creator":"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
					 "nonce":7,"signature":"0x0102","status":1,"txid":""}]}}`)
			})

			page, err := c.List(t.Context(), tt.give)
			require.NoError(t, err)
			assert.Equal(t, 11, page.Total)
			require.Len(t, page.Rows, 1)
			assert.Equal(t, multisig.PendingTransaction{
				ID:        "42",
				To:        testTo,
				Value:     big.NewInt(1000),
				Data:      []byte{0x0d, 0x58, 0x2f, 0x13},
				Creator:   testCreator,
				Nonce:     7,
				Signature: []byte{0x01, 0x02},
				Status:    multisig.StatusReady,
			}, page.Rows[0])
		})
	}
}

func TestClient_List_InvalidRow(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"data":{"total":1,"rows":[{"id":"9","to":"0x1234","status":1}]}}`)
	})

	_, err := c.List(t.Context(), Query{Status: multisig.StatusAll})
	require.ErrorIs(t, err, multisig.ErrInvalidAddress)
	require.ErrorContains(t, err, "transaction 9: to")
}

func TestClient_List_NumericValue(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"data":{"total":1,"rows":[{"id":9,"value":1e+21,"status":1}]}}`)
	})

	page, err := c.List(t.Context(), Query{Status: multisig.StatusAll})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(page.Rows[0].Value), "got %s", page.Rows[0].Value)
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give    string
		want    string
		wantErr string
	}{
		{give: "", want: "0"},
		{give: "1000", want: "1000"},
		{give: "1e+18", want: "1000000000000000000"},
		{give: "1.5E3", want: "1500"},
		{give: "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{give: "1.5", wantErr: "not a whole non-negative amount"},
		{give: "-1e3", wantErr: "not a whole non-negative amount"},
		{give: "-7", wantErr: "negative"},
		{give: "0x10", wantErr: `invalid value "0x10"`},
		{give: "abc", wantErr: `invalid value "abc"`},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			t.Parallel()

			got, err := parseValue(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestClient_Get(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "42" {
			writeJSON(t, w, http.StatusOK, `{"data":{"total":1,"rows":[{"id":"42","status":3}]}}`)
			return
		}
		writeJSON(t, w, http.StatusOK, `{"data":{"total":0,"rows":[]}}`)
	})

	got, err := c.Get(t.Context(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, multisig.StatusProposed, got.Status)

	_, err = c.Get(t.Context(), "7")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Update(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tx/42", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": float64(3), "txid": "0xabc"}, body)

		writeJSON(t, w, http.StatusOK, `{"code":0,"success":true}`)
	})

	require.NoError(t, c.Update(t.Context(), "42", multisig.StatusProposed, "0xabc"))
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(multisig.StatusClosed), body["status"])

		writeJSON(t, w, http.StatusOK, `{"success":true}`)
	})

	require.NoError(t, c.Close(t.Context(), "42"))
}

func TestClient_Delete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		status           int
		body             string
		wantErr          string
		wantUnauthorized bool
	}{
		{
			name:   "deleted",
			status: http.StatusOK,
			body:   `{"success":true}`,
		},
		{
			name:    "success false",
			status:  http.StatusOK,
			body:    `{"success":false,"error":{"message":"only the creator may delete"}}`,
			wantErr: "only the creator may delete",
		},
		{
			name:             "expired token",
			status:           http.StatusUnauthorized,
			body:             `{"message":"token expired"}`,
			wantErr:          "token expired",
			wantUnauthorized: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/tx/42", r.URL.Path)

				writeJSON(t, w, tt.status, tt.body)
			})

			err := c.Delete(t.Context(), "42")
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
			assert.Equal(t, tt.wantUnauthorized, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestFlexString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give    string
		want    flexString
		wantErr bool
	}{
		{give: `"abc"`, want: "abc"},
		{give: `12`, want: "12"},
		{give: `null`, want: ""},
		{give: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			t.Parallel()

			var got flexString
			err := json.Unmarshal([]byte(tt.give), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
