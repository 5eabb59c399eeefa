package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// Probe routing modes for CheckAll.
const (
	CheckHTTP   = "http"
	CheckSOCKS5 = "socks5"
)

type CheckOptions struct {
	ProbeURL string
	Type     string // http | socks5
	Timeout  time.Duration
}

type CheckResult struct {
	Record     Record
	Alive      bool
	StatusCode int
	LatencyMs  int64
	Err        string
}

// CheckAll probes every proxy in load order against opts.ProbeURL and
// reports which ones can carry a request. Probing is sequential.
func (p *Pool) CheckAll(ctx context.Context, opts CheckOptions) []CheckResult {
	results := make([]CheckResult, 0, len(p.records))
	for _, rec := range p.records {
		results = append(results, checkOne(ctx, rec, opts))
	}
	return results
}

func checkOne(ctx context.Context, rec Record, opts CheckOptions) CheckResult {
	out := CheckResult{Record: rec}

	client, err := probeClient(rec, opts.Type)
	if err != nil {
		out.Err = "client_build_error: " + err.Error()
		return out
	}

	probeCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, opts.ProbeURL, nil)
	if err != nil {
		out.Err = err.Error()
		return out
	}

	start := time.Now()
	resp, err := client.Do(req)
	out.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		out.Err = err.Error()
		return out
	}
	resp.Body.Close()

	out.Alive = true
	out.StatusCode = resp.StatusCode
	return out
}

func probeClient(rec Record, typ string) (*http.Client, error) {
	switch typ {
	case CheckSOCKS5:
		var auth *xproxy.Auth
		if rec.Username != "" || rec.Password != "" {
			auth = &xproxy.Auth{User: rec.Username, Password: rec.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", net.JoinHostPort(rec.Host, rec.Port), auth, &net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		dialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(xproxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
		return &http.Client{Transport: &http.Transport{DialContext: dialContext}}, nil

	case CheckHTTP, "":
		return &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(rec.URL())}}, nil

	default:
		return nil, fmt.Errorf("unknown proxy type %q", typ)
	}
}
