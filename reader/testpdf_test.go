package reader

import (
	"fmt"
	"strings"
)

// buildPDF assembles a PDF file from numbered object bodies: objects[i]
// becomes object i+1. Xref offsets are computed from the assembled layout,
// so the result parses like a real file.
func buildPDF(objects []string, trailerEntries string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefPos := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&b, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, trailerEntries, xrefPos)
	return []byte(b.String())
}

// streamObj builds an uncompressed stream object body with a correct
// /Length and optional extra dictionary entries.
func streamObj(extraEntries, content string) string {
	return fmt.Sprintf("<< /Length %d %s >>\nstream\n%s\nendstream",
		len(content), extraEntries, content)
}

// onePagePDF builds a single US-Letter page with the given content stream
// and an /Info dictionary.
func onePagePDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		streamObj("", content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Title (Fixture Document) /Author (reader tests) /Producer (pdfmcp) >>",
	}
	return buildPDF(objects, "/Root 1 0 R /Info 6 0 R")
}

// twoPagePDF builds two pages with separate content streams.
func twoPagePDF(content1, content2 string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Contents 5 0 R >>",
		"<< /Type /Page /Parent 2 0 R /Contents 6 0 R /Rotate 90 >>",
		streamObj("", content1),
		streamObj("", content2),
	}
	return buildPDF(objects, "/Root 1 0 R")
}

// helloContent is a minimal content stream drawing one word.
func helloContent(text string) string {
	return fmt.Sprintf("BT\n/F1 12 Tf\n72 700 Td\n(%s) Tj\nET", text)
}
