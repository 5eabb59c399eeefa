package proxy

import (
	"bufio"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/url"
	"os"
	"strings"
)

// Record holds the credentials for one outbound proxy, parsed from a
// host:port:username:password line. Immutable once constructed.
type Record struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ParseRecord parses a host:port:username:password line. A line that does not
// split into exactly four fields is rejected.
func ParseRecord(line string) (Record, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("invalid proxy format: %q", line)
	}
	return Record{
		Host:     parts[0],
		Port:     parts[1],
		Username: parts[2],
		Password: parts[3],
	}, nil
}

// URL returns the credential-embedded endpoint for the proxy. The waitlist
// API is reached through a plain http:// CONNECT endpoint for both schemes.
func (r Record) URL() *url.URL {
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(r.Host, r.Port),
	}
	if r.Username != "" || r.Password != "" {
		u.User = url.UserPassword(r.Username, r.Password)
	}
	return u
}

// Endpoints is one selected proxy expressed as endpoint strings, one per
// transport scheme. Both point at the same proxy.
type Endpoints struct {
	HTTP  string
	HTTPS string
}

// ForScheme maps a request scheme to its proxy endpoint.
func (e Endpoints) ForScheme(scheme string) (*url.URL, error) {
	if scheme == "https" {
		return url.Parse(e.HTTPS)
	}
	return url.Parse(e.HTTP)
}

// Pool is the ordered set of proxies held for the process duration.
type Pool struct {
	records []Record
	rng     *rand.Rand
	log     *slog.Logger
}

func NewPool(records []Record, rng *rand.Rand, log *slog.Logger) *Pool {
	return &Pool{records: records, rng: rng, log: log}
}

// Load reads proxies from path, logging and skipping lines that fail to
// parse. A missing or unreadable file is logged and yields an empty pool;
// the caller proceeds proxy-less.
func Load(path string, rng *rand.Rand, log *slog.Logger) *Pool {
	f, err := os.Open(path)
	if err != nil {
		log.Error("proxy file not found", "path", path, "err", err)
		return NewPool(nil, rng, log)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			log.Error("error parsing proxy", "err", err)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		log.Error("error reading proxy file", "path", path, "err", err)
	}

	log.Info("proxies loaded", "count", len(records))
	return NewPool(records, rng, log)
}

func (p *Pool) Len() int { return len(p.records) }

// Records returns the pool contents in load order.
func (p *Pool) Records() []Record { return p.records }

// Pick selects one proxy uniformly at random. ok is false when the pool is
// empty and the request should go out direct.
func (p *Pool) Pick() (Endpoints, bool) {
	if len(p.records) == 0 {
		p.log.Warn("no proxies available, proceeding without proxy")
		return Endpoints{}, false
	}
	u := p.records[p.rng.Intn(len(p.records))].URL().String()
	return Endpoints{HTTP: u, HTTPS: u}, true
}
