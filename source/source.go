// Package source resolves the different ways a tool call can hand the
// server a PDF: a filesystem path, inline base64 data, an HTTP(S) URL, or
// a key into the in-memory document cache. Every route ends in the same
// place: the raw bytes of a PDF, size-checked and header-checked.
package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lvillar/pdfmcp"
)

// Source identifies one PDF input. Exactly one field must be set.
type Source struct {
	Path     string `json:"path,omitempty"`
	Base64   string `json:"base64,omitempty"`
	URL      string `json:"url,omitempty"`
	CacheKey string `json:"cache_key,omitempty"`
}

// Validate checks that exactly one source field is populated.
func (s Source) Validate() error {
	n := 0
	for _, v := range []string{s.Path, s.Base64, s.URL, s.CacheKey} {
		if v != "" {
			n++
		}
	}
	switch n {
	case 0:
		return fmt.Errorf("%w: one of path, base64, url or cache_key is required", pdfmcp.ErrInvalidParam)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: path, base64, url and cache_key are mutually exclusive", pdfmcp.ErrInvalidParam)
	}
}

// Resolver turns a Source into PDF bytes, applying the configured
// sandboxing, download and size limits.
type Resolver struct {
	cfg    pdfmcp.Config
	cache  *Cache
	client *http.Client
}

// NewResolver builds a Resolver around the given config and cache. The
// cache may be nil if cache_key sources are not used.
func NewResolver(cfg pdfmcp.Config, cache *Cache) *Resolver {
	return &Resolver{
		cfg:   cfg,
		cache: cache,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Cache returns the resolver's document cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve fetches the PDF bytes for the given source.
func (r *Resolver) Resolve(ctx context.Context, src Source) ([]byte, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	switch {
	case src.Path != "":
		return r.resolvePath(src.Path)
	case src.Base64 != "":
		return r.resolveBase64(src.Base64)
	case src.URL != "":
		return r.resolveURL(ctx, src.URL)
	default:
		return r.resolveCacheKey(src.CacheKey)
	}
}

func (r *Resolver) resolvePath(path string) ([]byte, error) {
	resolved, err := ValidatePath(path, r.cfg.ResourceDirs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", path, err)
	}
	return checkPDF(data)
}

func (r *Resolver) resolveBase64(encoded string) ([]byte, error) {
	// Tolerate a data-URL wrapper around the payload.
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+len(";base64,"):]
	}

	if max := r.cfg.MaxDownloadBytes; max > 0 && int64(len(encoded)) > max*4/3+4 {
		return nil, pdfmcp.ErrDownloadTooLarge
	}

	// Accept the standard and URL-safe alphabets, padded or not; clients
	// are inconsistent about both.
	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err = enc.DecodeString(encoded)
		if err == nil {
			return checkPDF(data)
		}
	}
	return nil, fmt.Errorf("%w: invalid base64 data: %v", pdfmcp.ErrInvalidParam, err)
}

func (r *Resolver) resolveURL(ctx context.Context, rawURL string) ([]byte, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("%w: only http and https URLs are supported", pdfmcp.ErrInvalidParam)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pdfmcp.ErrInvalidParam, err)
	}

	if !r.cfg.AllowPrivateURLs {
		if err := checkPublicHost(ctx, req.URL.Hostname()); err != nil {
			return nil, err
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: fetching %s: unexpected status %s", rawURL, resp.Status)
	}

	max := r.cfg.MaxDownloadBytes
	if max > 0 && resp.ContentLength > max {
		return nil, pdfmcp.ErrDownloadTooLarge
	}

	var body io.Reader = resp.Body
	if max > 0 {
		body = io.LimitReader(resp.Body, max+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("source: downloading %s: %w", rawURL, err)
	}
	if max > 0 && int64(len(data)) > max {
		return nil, pdfmcp.ErrDownloadTooLarge
	}
	return checkPDF(data)
}

func (r *Resolver) resolveCacheKey(key string) ([]byte, error) {
	if r.cache == nil {
		return nil, pdfmcp.ErrCacheMiss
	}
	return r.cache.Get(key)
}

// checkPDF verifies the %PDF- header.
func checkPDF(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, pdfmcp.ErrNotPDF
	}
	return data, nil
}

// checkPublicHost resolves the hostname and rejects it when any address is
// private, loopback, link-local or otherwise unroutable from the public
// internet. Checking every resolved address closes the door on DNS entries
// that mix public and private records.
func checkPublicHost(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("%w: URL has no host", pdfmcp.ErrInvalidParam)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", pdfmcp.ErrPrivateURL, host)
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("source: resolving %s: %w", host, err)
	}
	for _, addr := range addrs {
		if isPrivateIP(addr.IP) {
			return fmt.Errorf("%w: %s resolves to %s", pdfmcp.ErrPrivateURL, host, addr.IP)
		}
	}
	return nil
}

// cgnatNet is the shared-address-space block (RFC 6598) that IsPrivate
// does not cover.
var cgnatNet = net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		cgnatNet.Contains(ip)
}
