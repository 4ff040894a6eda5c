package pageops

import (
	"fmt"
	"io"

	"github.com/lvillar/pdfmcp"
	"github.com/lvillar/pdfmcp/reader"
)

// Merge concatenates the pages of the given documents, in order, into one
// output document. Metadata is taken from the first input.
func Merge(w io.Writer, inputs ...[]byte) error {
	if len(inputs) < 2 {
		return fmt.Errorf("%w: merge needs at least two documents", pdfmcp.ErrInvalidParam)
	}

	b := &builder{}
	pagesRef := b.reserve()

	var refs []reader.Reference
	var meta map[string]string
	for i, data := range inputs {
		doc, err := open(data)
		if err != nil {
			return fmt.Errorf("pageops: input %d: %w", i+1, err)
		}
		if meta == nil {
			meta = doc.Metadata()
		}

		// One copier per source keeps shared resources deduplicated
		// within that source.
		c := newCopier(doc, b)
		for n := 1; n <= doc.NumPages(); n++ {
			page, err := doc.Page(n)
			if err != nil {
				return err
			}
			ref, err := appendPage(b, c, page, pagesRef, pageSettings{})
			if err != nil {
				return fmt.Errorf("pageops: input %d page %d: %w", i+1, n, err)
			}
			refs = append(refs, ref)
		}
	}
	return buildDocument(w, b, refs, pagesRef, meta, nil)
}
