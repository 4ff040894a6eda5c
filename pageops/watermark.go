package pageops

import (
	"fmt"
	"io"
	"math"

	"github.com/lvillar/pdfmcp/reader"
)

// TextWatermark describes a text overlay stamped onto pages.
type TextWatermark struct {
	Text     string
	FontSize float64 // default 48
	Gray     float64 // fill gray level in [0, 1], default 0.8
	Diagonal bool    // rotate 45 degrees around the page center
}

// overlayFontName is the resource name used for stamped text. The odd
// spelling keeps it clear of names real documents use.
const overlayFontName = "WMHelv0"

// AddTextWatermark rewrites the document with the watermark stamped onto
// the given pages (all pages when the list is empty).
func AddTextWatermark(w io.Writer, data []byte, wm TextWatermark, pages []int) error {
	if wm.Text == "" {
		return nil
	}
	if wm.FontSize <= 0 {
		wm.FontSize = 48
	}
	if wm.Gray <= 0 {
		wm.Gray = 0.8
	}

	return overlayPages(w, data, pages, func(p *reader.Page) string {
		return watermarkContent(wm, p.MediaBox)
	})
}

// AddPageNumbers stamps "n / total" centered in the bottom margin of every
// page.
func AddPageNumbers(w io.Writer, data []byte) error {
	doc, err := open(data)
	if err != nil {
		return err
	}
	total := doc.NumPages()

	return overlayPages(w, data, nil, func(p *reader.Page) string {
		label := fmt.Sprintf("%d / %d", p.Number, total)
		size := 10.0
		x := p.MediaBox.LLX + (p.MediaBox.Width()-estimateTextWidth(label, size))/2
		y := p.MediaBox.LLY + 20
		return fmt.Sprintf("q\nBT\n/%s %s Tf\n0 g\n%s %s Td\n(%s) Tj\nET\nQ",
			overlayFontName, formatReal(size), formatReal(x), formatReal(y), escapeText(label))
	})
}

// overlayPages rewrites the document appending a generated content stream
// to each selected page, with a Helvetica font resource injected for the
// overlay text.
func overlayPages(w io.Writer, data []byte, pages []int, content func(*reader.Page) string) error {
	doc, err := open(data)
	if err != nil {
		return err
	}

	selected := make(map[int]bool, len(pages))
	for _, n := range pages {
		selected[n] = true
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

		set := pageSettings{}
		if len(pages) == 0 || selected[n] {
			stamped := *page
			stamped.Resources, err = injectOverlayFont(doc, page.Resources)
			if err != nil {
				return err
			}
			set.extra = []reader.Stream{{
				Dict: reader.Dict{},
				Data: []byte(content(page)),
			}}
			page = &stamped
		}

		ref, err := appendPage(b, c, page, pagesRef, set)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	return buildDocument(w, b, refs, pagesRef, doc.Metadata(), nil)
}

// injectOverlayFont returns a copy of the page resources with an inline
// Helvetica font added under overlayFontName.
func injectOverlayFont(doc *reader.Document, res reader.Dict) (reader.Dict, error) {
	out := make(reader.Dict, len(res)+1)
	for k, v := range res {
		out[k] = v
	}

	fonts := make(reader.Dict)
	switch f := out["Font"].(type) {
	case reader.Dict:
		for k, v := range f {
			fonts[k] = v
		}
	case reader.Reference:
		resolved, err := doc.ResolveReference(f)
		if err != nil {
			return nil, err
		}
		if fd, ok := resolved.(reader.Dict); ok {
			for k, v := range fd {
				fonts[k] = v
			}
		}
	}

	fonts[overlayFontName] = reader.Dict{
		"Type":     reader.Name("Font"),
		"Subtype":  reader.Name("Type1"),
		"BaseFont": reader.Name("Helvetica"),
	}
	out["Font"] = fonts
	return out, nil
}

// watermarkContent draws the watermark text centered on the page,
// optionally rotated 45 degrees.
func watermarkContent(wm TextWatermark, box reader.Rectangle) string {
	cx := box.LLX + box.Width()/2
	cy := box.LLY + box.Height()/2
	halfWidth := estimateTextWidth(wm.Text, wm.FontSize) / 2

	var tm string
	if wm.Diagonal {
		cos := math.Sqrt2 / 2
		// Rotate about the center, then back the text up half its width
		// along the rotated baseline.
		tm = fmt.Sprintf("%s %s %s %s %s %s Tm",
			formatReal(cos), formatReal(cos), formatReal(-cos), formatReal(cos),
			formatReal(cx-halfWidth*cos), formatReal(cy-halfWidth*cos))
	} else {
		tm = fmt.Sprintf("1 0 0 1 %s %s Tm", formatReal(cx-halfWidth), formatReal(cy))
	}

	return fmt.Sprintf("q\nBT\n/%s %s Tf\n%s g\n%s\n(%s) Tj\nET\nQ",
		overlayFontName, formatReal(wm.FontSize), formatReal(wm.Gray), tm, escapeText(wm.Text))
}

// estimateTextWidth approximates Helvetica text width at half an em per
// character, which is close enough for centering.
func estimateTextWidth(text string, size float64) float64 {
	return float64(len(text)) * size * 0.5
}

// escapeText escapes a string for inclusion in a content stream literal.
func escapeText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', ')', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
