package http

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// BaseURLResolver yields the upstream API base URL for each proxied
// request. Resolution happens per request so the target can change
// without a restart.
type BaseURLResolver interface {
	BaseURL() (string, error)
}

// StaticBaseURLResolver always returns the same base URL.
type StaticBaseURLResolver struct {
	URL string
}

func (s StaticBaseURLResolver) BaseURL() (string, error) {
	if s.URL == "" {
		return "", fmt.Errorf("resolve base url: no url configured")
	}
	return strings.TrimRight(s.URL, "/"), nil
}

// FileBaseURLResolver reads the base URL from a KEY=VALUE file on every
// request, picking the line whose key matches Key. Deploy tooling
// rewrites the file after provisioning; the gateway picks the new
// value up immediately.
type FileBaseURLResolver struct {
	Path string
	Key  string
}

func (f FileBaseURLResolver) BaseURL() (string, error) {
	key := f.Key
	if key == "" {
		key = "API_BASE_URL"
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return "", fmt.Errorf("resolve base url: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		value := strings.TrimSpace(v)
		if value == "" {
			break
		}
		return strings.TrimRight(value, "/"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("resolve base url: %w", err)
	}
	return "", fmt.Errorf("resolve base url: %s not set in %s", key, f.Path)
}

// ReverseProxy forwards /api/proxy/* requests to the resolved upstream
// API, preserving method, body, and headers. The upstream response,
// status included, goes back to the client untouched except for CORS.
type ReverseProxy struct {
	resolver BaseURLResolver
	client   *http.Client
}

// NewReverseProxy builds a proxy over the given resolver. Redirects are
// not followed; the client sees the upstream's 3xx as-is.
func NewReverseProxy(resolver BaseURLResolver) *ReverseProxy {
	return &ReverseProxy{
		resolver: resolver,
		client: &http.Client{
			Timeout: 60 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// hopHeaders are connection-scoped and never forwarded in either
// direction.
var hopHeaders = map[string]struct{}{
	"Host":              {},
	"Connection":        {},
	"Content-Length":    {},
	"Transfer-Encoding": {},
}

const proxyPrefix = "/api/proxy"

func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeCORSHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
		return
	}

	base, err := p.resolver.BaseURL()
	if err != nil {
		slog.Error("proxy base url resolution failed", "error", err)
		writeCORSHeaders(w.Header())
		WriteError(w, http.StatusBadGateway, "Upstream not configured")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, proxyPrefix)
	if path == "" {
		path = "/"
	}
	target := base + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		writeCORSHeaders(w.Header())
		WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	for name, values := range r.Header {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(name)]; hop {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Error("proxy upstream request failed", "target", target, "error", err)
		writeCORSHeaders(w.Header())
		WriteError(w, http.StatusBadGateway, "Upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(name)]; hop {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	writeCORSHeaders(w.Header())

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("proxy stream interrupted", "target", target, "error", err)
	}
}

func writeCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
