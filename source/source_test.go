package source

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvillar/pdfmcp"
)

var pdfBytes = []byte("%PDF-1.7\n%fixture!\n%%EOF\n")

func TestSourceValidate(t *testing.T) {
	cases := []struct {
		name    string
		src     Source
		wantErr bool
	}{
		{"path only", Source{Path: "/tmp/a.pdf"}, false},
		{"base64 only", Source{Base64: "aGk="}, false},
		{"url only", Source{URL: "https://example.com/a.pdf"}, false},
		{"cache key only", Source{CacheKey: "abc"}, false},
		{"none", Source{}, true},
		{"two fields", Source{Path: "/tmp/a.pdf", URL: "https://example.com"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.src.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr && !errors.Is(err, pdfmcp.ErrInvalidParam) {
				t.Errorf("error %v should wrap ErrInvalidParam", err)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(pdfmcp.NewConfig(pdfmcp.WithResourceDirs(dir)), nil)
	data, err := r.Resolve(context.Background(), Source{Path: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != string(pdfBytes) {
		t.Errorf("got %q, want fixture bytes", data)
	}
}

func TestResolvePathOutsideSandbox(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(outside, "doc.pdf")
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(pdfmcp.NewConfig(pdfmcp.WithResourceDirs(allowed)), nil)
	_, err := r.Resolve(context.Background(), Source{Path: path})
	if !errors.Is(err, pdfmcp.ErrPathDenied) {
		t.Errorf("got %v, want ErrPathDenied", err)
	}
}

func TestResolvePathNotPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(pdfmcp.NewConfig(), nil)
	_, err := r.Resolve(context.Background(), Source{Path: path})
	if !errors.Is(err, pdfmcp.ErrNotPDF) {
		t.Errorf("got %v, want ErrNotPDF", err)
	}
}

func TestResolveBase64(t *testing.T) {
	r := NewResolver(pdfmcp.NewConfig(), nil)
	encoded := base64.StdEncoding.EncodeToString(pdfBytes)

	cases := []struct {
		name  string
		input string
	}{
		{"plain", encoded},
		{"data url", "data:application/pdf;base64," + encoded},
		{"unpadded", strings.TrimRight(encoded, "=")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := r.Resolve(context.Background(), Source{Base64: tc.input})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if string(data) != string(pdfBytes) {
				t.Errorf("got %q, want fixture bytes", data)
			}
		})
	}
}

func TestResolveBase64URLSafeAlphabet(t *testing.T) {
	// High byte values force alphabet positions 62/63, where the standard
	// ('+', '/') and URL-safe ('-', '_') alphabets disagree.
	binary := append([]byte("%PDF-1.7\n%"), 0xFF, 0xFE, 0xFB, 0xEF)
	binary = append(binary, []byte("\n%%EOF\n")...)

	encoded := base64.URLEncoding.EncodeToString(binary)
	if !strings.ContainsAny(encoded, "-_") {
		t.Fatal("fixture does not exercise the URL-safe alphabet")
	}

	r := NewResolver(pdfmcp.NewConfig(), nil)
	for _, input := range []string{encoded, strings.TrimRight(encoded, "=")} {
		data, err := r.Resolve(context.Background(), Source{Base64: input})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", input, err)
		}
		if string(data) != string(binary) {
			t.Errorf("got %q, want fixture bytes", data)
		}
	}
}

func TestResolveBase64Invalid(t *testing.T) {
	r := NewResolver(pdfmcp.NewConfig(), nil)

	_, err := r.Resolve(context.Background(), Source{Base64: "!!not base64!!"})
	if !errors.Is(err, pdfmcp.ErrInvalidParam) {
		t.Errorf("got %v, want ErrInvalidParam", err)
	}
}

func TestResolveURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(pdfBytes)
	}))
	defer srv.Close()

	// The test server listens on loopback, so private URLs must be allowed.
	r := NewResolver(pdfmcp.NewConfig(pdfmcp.WithAllowPrivateURLs(true)), nil)
	data, err := r.Resolve(context.Background(), Source{URL: srv.URL})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != string(pdfBytes) {
		t.Errorf("got %q, want fixture bytes", data)
	}
}

func TestResolveURLBlocksPrivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(pdfBytes)
	}))
	defer srv.Close()

	r := NewResolver(pdfmcp.NewConfig(), nil)
	_, err := r.Resolve(context.Background(), Source{URL: srv.URL})
	if !errors.Is(err, pdfmcp.ErrPrivateURL) {
		t.Errorf("got %v, want ErrPrivateURL", err)
	}
}

func TestResolveURLTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("%PDF-1.7\n"))
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	cfg := pdfmcp.NewConfig(
		pdfmcp.WithAllowPrivateURLs(true),
		pdfmcp.WithMaxDownloadBytes(100),
	)
	r := NewResolver(cfg, nil)
	_, err := r.Resolve(context.Background(), Source{URL: srv.URL})
	if !errors.Is(err, pdfmcp.ErrDownloadTooLarge) {
		t.Errorf("got %v, want ErrDownloadTooLarge", err)
	}
}

func TestResolveURLBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	}))
	defer srv.Close()

	r := NewResolver(pdfmcp.NewConfig(pdfmcp.WithAllowPrivateURLs(true)), nil)
	if _, err := r.Resolve(context.Background(), Source{URL: srv.URL}); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestResolveURLRejectsScheme(t *testing.T) {
	r := NewResolver(pdfmcp.NewConfig(), nil)

	_, err := r.Resolve(context.Background(), Source{URL: "ftp://example.com/a.pdf"})
	if !errors.Is(err, pdfmcp.ErrInvalidParam) {
		t.Errorf("got %v, want ErrInvalidParam", err)
	}
}

func TestResolveCacheKey(t *testing.T) {
	cache := NewCache(10, 1024)
	key, err := cache.Put(pdfBytes, "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(pdfmcp.NewConfig(), cache)
	data, err := r.Resolve(context.Background(), Source{CacheKey: key})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != string(pdfBytes) {
		t.Errorf("got %q, want fixture bytes", data)
	}

	if _, err := r.Resolve(context.Background(), Source{CacheKey: "missing"}); !errors.Is(err, pdfmcp.ErrCacheMiss) {
		t.Errorf("got %v, want ErrCacheMiss", err)
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{
		"127.0.0.1", "10.0.0.5", "172.16.1.1", "192.168.0.10",
		"169.254.1.1", "100.64.0.1", "0.0.0.0", "::1", "fc00::1", "fe80::1",
	}
	for _, s := range private {
		if !isPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be private", s)
		}
	}
	public := []string{"8.8.8.8", "93.184.216.34", "2606:2800:220:1::1"}
	for _, s := range public {
		if isPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be public", s)
		}
	}
}

func TestValidatePathOutputFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "not-yet-created.pdf")

	resolved, err := ValidatePath(out, []string{dir})
	if err != nil {
		t.Fatalf("ValidatePath: %v", err)
	}
	if filepath.Dir(resolved) == "" {
		t.Errorf("resolved path %q has no directory", resolved)
	}

	if _, err := ValidatePath(filepath.Join(dir, "sub", "deep.pdf"), []string{dir}); err == nil {
		// The parent "sub" does not exist, so resolution fails.
		t.Error("expected an error for a missing parent directory")
	}
}
