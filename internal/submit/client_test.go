package submit

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/waitroll/waitroll/internal/history"
	"github.com/waitroll/waitroll/internal/logging"
	"github.com/waitroll/waitroll/internal/proxy"
)

func testClient(endpoint string, timeout time.Duration) *Client {
	rng := rand.New(rand.NewSource(1))
	pool := proxy.NewPool(nil, rng, logging.Discard())
	return New(endpoint, timeout, pool, rng, nil, logging.Discard())
}

func successBody() string {
	return `{"success": true, "message": "Added to waitlist successfully"}`
}

func TestSubmitSuccess(t *testing.T) {
	var gotReq struct {
		method      string
		contentType string
		userAgent   string
		payload     payload
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq.method = r.Method
		gotReq.contentType = r.Header.Get("content-type")
		gotReq.userAgent = r.Header.Get("user-agent")
		if err := json.NewDecoder(r.Body).Decode(&gotReq.payload); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody()))
	}))
	defer server.Close()

	client := testClient(server.URL, 5*time.Second)
	if !client.Submit(context.Background(), "a@x.com") {
		t.Fatal("Submit = false, want true")
	}

	if gotReq.method != http.MethodPost {
		t.Errorf("method = %s, want POST", gotReq.method)
	}
	if gotReq.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", gotReq.contentType)
	}
	if gotReq.userAgent == "" {
		t.Error("user-agent header not set")
	}
	if gotReq.payload.Email != "a@x.com" {
		t.Errorf("email = %q, want a@x.com", gotReq.payload.Email)
	}

	occupationOK := false
	for _, o := range Occupations {
		if gotReq.payload.Occupation == o {
			occupationOK = true
		}
	}
	if !occupationOK {
		t.Errorf("occupation %q not in the fixed set", gotReq.payload.Occupation)
	}
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   successBody(),
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"success": false, "message": "internal error"}`,
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"success": tru`,
		},
		{
			name:   "success false",
			status: http.StatusOK,
			body:   `{"success": false, "message": "Added to waitlist successfully"}`,
		},
		{
			name:   "different message",
			status: http.StatusOK,
			body:   `{"success": true, "message": "Added to the waitlist"}`,
		},
		{
			name:   "missing fields",
			status: http.StatusOK,
			body:   `{}`,
		},
		{
			name:   "html block page",
			status: http.StatusForbidden,
			body:   `<html><head><title>Access denied</title></head><body>blocked</body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := testClient(server.URL, 5*time.Second)
			if client.Submit(context.Background(), "a@x.com") {
				t.Error("Submit = true, want false")
			}
		})
	}
}

func TestSubmitTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := testClient(server.URL, time.Second)
	if client.Submit(context.Background(), "a@x.com") {
		t.Error("Submit succeeded against a closed server")
	}
}

func TestSubmitTimeout(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := testClient(server.URL, 50*time.Millisecond)
	if client.Submit(context.Background(), "a@x.com") {
		t.Error("Submit succeeded past its timeout")
	}
	<-started
}

type fakeRecorder struct {
	records []*history.Record
}

func (f *fakeRecorder) Add(r *history.Record) error {
	f.records = append(f.records, r)
	return nil
}

func TestSubmitRecordsOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(successBody()))
	}))
	defer server.Close()

	rng := rand.New(rand.NewSource(1))
	pool := proxy.NewPool(nil, rng, logging.Discard())
	rec := &fakeRecorder{}
	client := New(server.URL, 5*time.Second, pool, rng, rec, logging.Discard())

	client.Submit(context.Background(), "a@x.com")

	if len(rec.records) != 1 {
		t.Fatalf("got %d history records, want 1", len(rec.records))
	}
	r := rec.records[0]
	if r.Email != "a@x.com" || !r.Success {
		t.Errorf("recorded %+v, want a@x.com success", r)
	}
	if r.Proxy != "none" {
		t.Errorf("proxy = %q, want none for an empty pool", r.Proxy)
	}
	if r.SubmittedAt.IsZero() {
		t.Error("submitted_at not set")
	}
}

func TestSummarizeBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "json passed through",
			body: `{"success": false}`,
			want: `{"success": false}`,
		},
		{
			name: "html reduced to title",
			body: `<html><head><title>503 Service Unavailable</title></head><body>...</body></html>`,
			want: "html: 503 Service Unavailable",
		},
		{
			name: "html without title passed through",
			body: `<p>nope</p>`,
			want: `<p>nope</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarizeBody([]byte(tt.body)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
