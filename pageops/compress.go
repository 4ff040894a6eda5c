package pageops

import (
	"io"

	"github.com/lvillar/pdfmcp/reader"
)

// Compress rewrites the document with every unfiltered stream
// flate-compressed. Streams that already carry a filter are copied
// unchanged. Rewriting also drops unreferenced objects and old file
// revisions, which is frequently where most of the savings come from.
func Compress(w io.Writer, data []byte) error {
	doc, err := open(data)
	if err != nil {
		return err
	}

	b := &builder{}
	c := newCopier(doc, b)
	pagesRef := b.reserve()

	refs := make([]reader.Reference, 0, doc.NumPages())
	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			return err
		}
		ref, err := appendPage(b, c, page, pagesRef, pageSettings{compress: true})
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	return buildDocument(w, b, refs, pagesRef, doc.Metadata(), nil)
}
