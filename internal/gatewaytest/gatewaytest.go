// Package gatewaytest runs an in-memory Identity Gateway for tests.
package gatewaytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Gateway is a fake Identity Gateway serving /token/pubkey, /accounts/{id}
// and /users/self. Every account listed in Accessible is returned; any
// other id gets a 400 with code 8004, the gateway's way of saying the
// caller may not act on that account.
type Gateway struct {
	*httptest.Server

	PublicKey string

	mu         sync.Mutex
	accessible map[int64]bool

	PubkeyCalls  atomic.Int64
	AccountCalls atomic.Int64
	UserCalls    atomic.Int64
}

// New starts a Gateway handing out publicKey. The server is closed when
// the test ends.
func New(t testing.TB, publicKey string, accessible ...int64) *Gateway {
	t.Helper()
	g := &Gateway{PublicKey: publicKey, accessible: map[int64]bool{}}
	for _, id := range accessible {
		g.accessible[id] = true
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.Close)
	return g
}

// Allow makes account id accessible.
func (g *Gateway) Allow(id int64) {
	g.mu.Lock()
	g.accessible[id] = true
	g.mu.Unlock()
}

// Calls returns the total number of requests served.
func (g *Gateway) Calls() int64 {
	return g.PubkeyCalls.Load() + g.AccountCalls.Load() + g.UserCalls.Load()
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/token/pubkey":
		g.PubkeyCalls.Add(1)
		fmt.Fprintf(w, `{"pubkey":%q}`, g.PublicKey)

	case r.URL.Path == "/users/self":
		g.UserCalls.Add(1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":{"id":"7","email":"user@example.com","status":"active",`+
			`"created_on":1700000000,"last_activity_on":1700000100,"expires_on":null,`+
			`"first_name":"Jane","last_name":"Doe","title":null,"language":"en_US",`+
			`"timezone":"UTC","office_phone":null,"mobile_phone":null}}`)

	case strings.HasPrefix(r.URL.Path, "/accounts/"):
		g.AccountCalls.Add(1)
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/accounts/"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		g.mu.Lock()
		ok := g.accessible[id]
		g.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"detail":[{"code":8004,"msg":"account is not a sub-account"}]}`)
			return
		}
		fmt.Fprintf(w, `{"data":{"id":"%d","lineage":"1-42-%d","status":"active","name":"Account %d",`+
			`"address":{"address1":"1 Main St","address2":null,"city":"Montreal","country":"CA",`+
			`"province":"QC","postal_code":"H1H1H1"},"account_owner":{"user_id":7},`+
			`"usage_limits":{"per_month":1000},"metadata":{"use_html_editor":true}}}`, id, id, id)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
