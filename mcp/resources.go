package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lvillar/pdfmcp"
	"github.com/lvillar/pdfmcp/reader"
	"github.com/lvillar/pdfmcp/source"
)

// registerResources adds the pdf:// resources. The path-based ones take the
// file path as a query parameter and go through the same resource-dir
// sandbox as the tools.
func (ts *Toolset) registerResources(s *Server) {
	s.AddResource(Resource{
		URI:         "pdf://text",
		Name:        "PDF Text Content",
		Description: "Extract all text content from a PDF file in reading order. Pass the file path as a query parameter: pdf://text?path=/path/to/file.pdf",
		MIMEType:    "text/plain",
		Handler:     ts.handleTextResource,
	})

	s.AddResource(Resource{
		URI:         "pdf://metadata",
		Name:        "PDF Metadata",
		Description: "Get metadata from a PDF file (title, author, subject, etc.). Pass the file path as a query parameter: pdf://metadata?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler:     ts.handleMetadataResource,
	})

	s.AddResource(Resource{
		URI:         "pdf://pages",
		Name:        "PDF Page Info",
		Description: "Get page information from a PDF (count, dimensions, rotation). Pass the file path as a query parameter: pdf://pages?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler:     ts.handlePagesResource,
	})

	s.AddResource(Resource{
		URI:         "pdf://form-fields",
		Name:        "PDF Form Fields",
		Description: "List all form fields in a PDF. Pass the file path as a query parameter: pdf://form-fields?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler:     ts.handleFormFieldsResource,
	})

	s.AddResource(Resource{
		URI:         "pdf://cache",
		Name:        "Cached Documents",
		Description: "List the documents currently held in the server's in-memory cache, most recently used first.",
		MIMEType:    "application/json",
		Handler:     ts.handleCacheResource,
	})
}

func extractPathFromURI(uri string) string {
	// Parse path from URI like pdf://text?path=/foo/bar.pdf
	if idx := strings.Index(uri, "path="); idx >= 0 {
		return uri[idx+5:]
	}
	return ""
}

// openResourceDoc resolves and parses the PDF named by the URI's path
// parameter.
func (ts *Toolset) openResourceDoc(uri string) (*reader.Document, error) {
	path := extractPathFromURI(uri)
	if path == "" {
		return nil, fmt.Errorf("%w: missing 'path' parameter in URI", pdfmcp.ErrInvalidParam)
	}

	data, err := ts.resolver.Resolve(context.Background(), source.Source{Path: path})
	if err != nil {
		return nil, err
	}
	return reader.ReadFrom(bytes.NewReader(data))
}

func (ts *Toolset) handleTextResource(uri string) ([]ResourceContent, error) {
	doc, err := ts.openResourceDoc(uri)
	if err != nil {
		return nil, err
	}

	var result strings.Builder
	for pageNum, page := range doc.Pages() {
		text, err := page.ExtractText()
		if err != nil {
			fmt.Fprintf(&result, "--- Page %d (error extracting text) ---\n", pageNum)
			continue
		}
		fmt.Fprintf(&result, "--- Page %d ---\n%s\n\n", pageNum, text)
	}

	return []ResourceContent{{
		URI:      uri,
		MIMEType: "text/plain",
		Text:     result.String(),
	}}, nil
}

func (ts *Toolset) handleMetadataResource(uri string) ([]ResourceContent, error) {
	doc, err := ts.openResourceDoc(uri)
	if err != nil {
		return nil, err
	}

	info := map[string]interface{}{
		"version":  doc.Version,
		"numPages": doc.NumPages(),
		"metadata": doc.Metadata(),
	}

	return jsonResource(uri, info)
}

func (ts *Toolset) handlePagesResource(uri string) ([]ResourceContent, error) {
	doc, err := ts.openResourceDoc(uri)
	if err != nil {
		return nil, err
	}

	pages := make([]map[string]interface{}, 0, doc.NumPages())
	for pageNum, page := range doc.Pages() {
		mb := page.MediaBox
		pages = append(pages, map[string]interface{}{
			"page":   pageNum,
			"width":  mb.Width(),
			"height": mb.Height(),
			"rotate": page.Rotate,
		})
	}

	return jsonResource(uri, map[string]interface{}{
		"numPages": doc.NumPages(),
		"pages":    pages,
	})
}

func (ts *Toolset) handleFormFieldsResource(uri string) ([]ResourceContent, error) {
	doc, err := ts.openResourceDoc(uri)
	if err != nil {
		return nil, err
	}

	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("reading form fields: %w", err)
	}

	infos := formFieldJSON(fields)
	return jsonResource(uri, map[string]interface{}{
		"fieldCount": len(infos),
		"fields":     infos,
	})
}

func (ts *Toolset) handleCacheResource(uri string) ([]ResourceContent, error) {
	entries := make([]map[string]interface{}, 0)
	for _, e := range ts.resolver.Cache().Entries() {
		entries = append(entries, map[string]interface{}{
			"cacheKey": e.Key,
			"name":     e.Name,
			"size":     e.Size,
			"storedAt": e.StoredAt,
		})
	}
	return jsonResource(uri, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

func jsonResource(uri string, v interface{}) ([]ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: encoding resource: %w", err)
	}
	return []ResourceContent{{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(data),
	}}, nil
}
