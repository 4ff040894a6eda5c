package pageops

import (
	"io"

	"github.com/lvillar/pdfmcp/reader"
)

// ExtractPages writes a new document containing the given 1-based pages of
// the input, in the order listed. Pages may repeat.
func ExtractPages(w io.Writer, data []byte, pages ...int) error {
	doc, err := open(data)
	if err != nil {
		return err
	}
	return writePages(w, doc, pages, nil)
}

// ExtractPageRange writes pages start through end inclusive.
func ExtractPageRange(w io.Writer, data []byte, start, end int) error {
	if start < 1 {
		start = 1
	}
	var pages []int
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return ExtractPages(w, data, pages...)
}

// writePages re-serializes the selected pages of doc. rotations maps a
// 1-based page number to a /Rotate override.
func writePages(w io.Writer, doc *reader.Document, pages []int, rotations map[int]int) error {
	b := &builder{}
	c := newCopier(doc, b)
	pagesRef := b.reserve()

	refs := make([]reader.Reference, 0, len(pages))
	for _, n := range pages {
		page, err := doc.Page(n)
		if err != nil {
			return err
		}
		set := pageSettings{}
		if rot, ok := rotations[n]; ok {
			set.rotate = &rot
		}
		ref, err := appendPage(b, c, page, pagesRef, set)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	return buildDocument(w, b, refs, pagesRef, doc.Metadata(), nil)
}

// allPages lists every page number of doc.
func allPages(doc *reader.Document) []int {
	pages := make([]int, doc.NumPages())
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
