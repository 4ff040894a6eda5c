// Package pageops provides page-level operations on existing PDF documents:
// extracting and reordering pages, merging documents, rotating, stream
// compression, and RC4 password protection. Documents are parsed with the
// reader package and re-serialized, so the output is always a clean
// single-revision file.
package pageops

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lvillar/pdfmcp"
	"github.com/lvillar/pdfmcp/reader"
)

// ParsePageRange expands a page range expression like "1-5,8,10-12" into a
// sorted, deduplicated list of 1-based page numbers. numPages bounds the
// valid range; every referenced page must exist.
func ParsePageRange(spec string, numPages int) ([]int, error) {
	seen := make(map[int]bool)

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty element in page range %q", pdfmcp.ErrInvalidParam, spec)
		}

		lo, hi := part, part
		if idx := strings.Index(part, "-"); idx > 0 {
			lo, hi = strings.TrimSpace(part[:idx]), strings.TrimSpace(part[idx+1:])
		}

		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid page number %q", pdfmcp.ErrInvalidParam, lo)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid page number %q", pdfmcp.ErrInvalidParam, hi)
		}

		if start < 1 {
			return nil, fmt.Errorf("%w: page numbers start at 1, got %d", pdfmcp.ErrInvalidParam, start)
		}
		if end < start {
			return nil, fmt.Errorf("%w: range %q is reversed", pdfmcp.ErrInvalidParam, part)
		}
		if end > numPages {
			return nil, fmt.Errorf("%w: page %d out of range, document has %d pages", pdfmcp.ErrInvalidParam, end, numPages)
		}

		for p := start; p <= end; p++ {
			seen[p] = true
		}
	}

	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

// open parses PDF bytes, mapping parse failures onto the shared sentinel
// errors.
func open(data []byte) (*reader.Document, error) {
	return openWithPassword(data, "")
}

func openWithPassword(data []byte, password string) (*reader.Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, pdfmcp.ErrNotPDF
	}
	doc, err := reader.ReadFromWithPassword(bytes.NewReader(data), password)
	if err != nil {
		if strings.Contains(err.Error(), "password") {
			return nil, fmt.Errorf("%w: %v", pdfmcp.ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %v", pdfmcp.ErrCorrupted, err)
	}
	return doc, nil
}
