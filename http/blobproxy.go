package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/folio-sh/folio"
)

// BlobProxy streams a remote object through the server so browsers can
// render files whose storage endpoint is not directly reachable. The
// upstream host must be on the configured allow-list; without one the
// proxy refuses everything.
type BlobProxy struct {
	allowed map[string]struct{}
	client  *http.Client
}

// NewBlobProxy builds a proxy restricted to the given "host:port"
// upstreams. The client follows redirects so presigned URLs that
// bounce through one still stream.
func NewBlobProxy(allowedUpstreams []string) *BlobProxy {
	allowed := make(map[string]struct{}, len(allowedUpstreams))
	for _, host := range allowedUpstreams {
		if host != "" {
			allowed[host] = struct{}{}
		}
	}
	return &BlobProxy{
		allowed: allowed,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// passthroughHeaders are copied from the upstream response verbatim so
// range requests and caching validators keep working through the proxy.
var passthroughHeaders = []string{
	"Accept-Ranges",
	"Content-Length",
	"Content-Range",
	"ETag",
	"Last-Modified",
}

func (p *BlobProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		WriteError(w, http.StatusBadRequest, "Missing url")
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		WriteError(w, http.StatusBadRequest, "Invalid url")
		return
	}

	if _, ok := p.allowed[target.Host]; !ok {
		WriteError(w, http.StatusForbidden, "Upstream not allowed")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), nil)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid url")
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Error("blob proxy upstream request failed", "host", target.Host, "error", err)
		WriteError(w, http.StatusBadGateway, "Upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	contentType := r.URL.Query().Get("contentType")
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileName := folio.HeaderSafeFileName(r.URL.Query().Get("fileName"))
	if fileName == "" {
		fileName = "file"
	}
	disposition := strings.ToLower(r.URL.Query().Get("disposition"))
	if disposition != "attachment" {
		disposition = "inline"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", folio.ContentDisposition(disposition, fileName))
	w.Header().Set("Cache-Control", "no-store")
	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	// The upstream status goes out as-is: a 206 stays a 206, an
	// upstream 403 or 404 is reported, never masked as a 200.
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("blob proxy stream interrupted", "host", target.Host, "error", err)
	}
}
