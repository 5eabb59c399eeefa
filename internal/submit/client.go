package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/waitroll/waitroll/internal/history"
	"github.com/waitroll/waitroll/internal/proxy"
)

// Recorder persists per-attempt outcomes. Satisfied by *history.Store; nil
// disables recording.
type Recorder interface {
	Add(*history.Record) error
}

// SuccessMessage is the exact confirmation string the waitlist API returns on
// a successful signup. Anything else counts as a failure.
const SuccessMessage = "Added to waitlist successfully"

// Occupations is the fixed set one value is drawn from per submission.
var Occupations = []string{
	"Developer",
	"Product Manager",
	"Researcher",
	"Student",
	"Entrepreneur",
}

// browserHeaders mimics the browser session the waitlist form is normally
// submitted from.
var browserHeaders = map[string]string{
	"accept":          "*/*",
	"accept-language": "ru-RU,ru;q=0.8",
	"content-type":    "application/json",
	"origin":          "https://flows.mira.network",
	"priority":        "u=1, i",
	"referer":         "https://flows.mira.network/",
	"sec-ch-ua":       `"Brave";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
	"user-agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

const maxBodyBytes = 64 * 1024

type proxyCtxKey struct{}

type payload struct {
	Email      string `json:"email"`
	Occupation string `json:"occupation"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client submits email addresses to the waitlist endpoint. One client, and
// its transport's connection pool, serves an entire run.
type Client struct {
	url        string
	httpClient *http.Client
	pool       *proxy.Pool
	rng        *rand.Rand
	rec        Recorder
	log        *slog.Logger
}

// New builds a Client routing through pool. The proxy for each request is
// picked per submission and threaded through the request context, so the
// shared transport still caches connections per proxy endpoint.
func New(endpoint string, timeout time.Duration, pool *proxy.Pool, rng *rand.Rand, rec Recorder, log *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			ep, ok := req.Context().Value(proxyCtxKey{}).(proxy.Endpoints)
			if !ok {
				return nil, nil
			}
			return ep.ForScheme(req.URL.Scheme)
		},
	}

	return &Client{
		url: endpoint,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		pool: pool,
		rng:  rng,
		rec:  rec,
		log:  log,
	}
}

// Submit sends one waitlist signup for email and reports whether the API
// confirmed it. Every failure mode, transport errors included, is logged and
// converted to false; nothing propagates out.
func (c *Client) Submit(ctx context.Context, email string) bool {
	occupation := Occupations[c.rng.Intn(len(Occupations))]

	proxyInfo := "none"
	if endpoints, ok := c.pool.Pick(); ok {
		proxyInfo = endpoints.HTTP
		ctx = context.WithValue(ctx, proxyCtxKey{}, endpoints)
	}

	c.log.Info("submitting email",
		"email", email,
		"occupation", occupation,
		"proxy", proxyInfo,
	)

	ok := c.send(ctx, email, occupation)

	if c.rec != nil {
		rec := &history.Record{
			Email:       email,
			Occupation:  occupation,
			Proxy:       proxyInfo,
			Success:     ok,
			SubmittedAt: time.Now(),
		}
		if err := c.rec.Add(rec); err != nil {
			c.log.Warn("failed to record history", "email", email, "err", err)
		}
	}
	return ok
}

func (c *Client) send(ctx context.Context, email, occupation string) bool {
	body, err := json.Marshal(payload{Email: email, Occupation: occupation})
	if err != nil {
		c.log.Error("error encoding request body", "email", email, "err", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.log.Error("error building request", "email", email, "err", err)
		return false
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("error submitting email", "email", email, "err", err)
		return false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.log.Error("error reading response", "email", email, "err", err)
		return false
	}

	if resp.StatusCode == http.StatusOK && isSuccessBody(respBody) {
		c.log.Info("successfully added to waitlist", "email", email)
		return true
	}

	c.log.Warn("failed to submit email",
		"email", email,
		"status", resp.StatusCode,
		"response", summarizeBody(respBody),
	)
	return false
}

func isSuccessBody(body []byte) bool {
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	return parsed.Success && parsed.Message == SuccessMessage
}

// summarizeBody keeps failure logs readable. HTML error bodies (block pages,
// gateway errors) are reduced to their <title>; everything else is passed
// through truncated.
func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
		if err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return "html: " + title
			}
		}
	}
	if len(trimmed) > 512 {
		return trimmed[:512] + "..."
	}
	return trimmed
}
