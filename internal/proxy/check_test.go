package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/waitroll/waitroll/internal/logging"
)

func TestCheckAllAliveProxy(t *testing.T) {
	// For a plain http:// probe URL an HTTP proxy just receives an ordinary
	// absolute-URI GET, so a stub server can stand in for the proxy.
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer stub.Close()

	u, err := url.Parse(stub.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, port := u.Hostname(), u.Port()

	pool := NewPool([]Record{{Host: host, Port: port}}, testRand(), logging.Discard())
	results := pool.CheckAll(context.Background(), CheckOptions{
		ProbeURL: "http://probe.invalid/",
		Type:     CheckHTTP,
		Timeout:  2 * time.Second,
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[0].Alive {
		t.Fatalf("proxy reported dead: %s", results[0].Err)
	}
	if results[0].StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", results[0].StatusCode)
	}
}

func TestCheckAllDeadProxy(t *testing.T) {
	// Port 1 on localhost should refuse the connection.
	pool := NewPool([]Record{{Host: "127.0.0.1", Port: "1"}}, testRand(), logging.Discard())
	results := pool.CheckAll(context.Background(), CheckOptions{
		ProbeURL: "http://probe.invalid/",
		Type:     CheckHTTP,
		Timeout:  2 * time.Second,
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Alive {
		t.Error("unreachable proxy reported alive")
	}
	if results[0].Err == "" {
		t.Error("dead proxy carries no error detail")
	}
}

func TestCheckAllUnknownType(t *testing.T) {
	pool := NewPool([]Record{{Host: "127.0.0.1", Port: "1"}}, testRand(), logging.Discard())
	results := pool.CheckAll(context.Background(), CheckOptions{
		ProbeURL: "http://probe.invalid/",
		Type:     "carrier-pigeon",
		Timeout:  time.Second,
	})

	if results[0].Alive {
		t.Error("unknown proxy type reported alive")
	}
}

func TestCheckAllPreservesOrder(t *testing.T) {
	records := []Record{
		{Host: "127.0.0.1", Port: "1"},
		{Host: "127.0.0.1", Port: "2"},
	}
	pool := NewPool(records, testRand(), logging.Discard())
	results := pool.CheckAll(context.Background(), CheckOptions{
		ProbeURL: "http://probe.invalid/",
		Type:     CheckHTTP,
		Timeout:  time.Second,
	})

	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}
	for i := range records {
		if results[i].Record != records[i] {
			t.Errorf("result %d is for %+v, want %+v", i, results[i].Record, records[i])
		}
	}
}
