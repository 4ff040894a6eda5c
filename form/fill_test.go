package form

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/lvillar/pdfmcp/reader"
)

// formFixture assembles a PDF with a text field, a pre-filled text field,
// a checkbox, and a read-only field. Object offsets in the xref are
// computed from the assembled layout.
func formFixture() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R 7 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Annots [4 0 R 5 0 R 6 0 R 7 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (name) /Rect [40 700 200 720] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (email) /V (old@example.com) /Rect [40 660 200 680] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Btn /T (agree) /V /Off /AS /Off /Rect [40 620 55 635] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (locked) /Ff 1 /Rect [40 580 200 600] >>",
	}

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
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefPos)
	return []byte(b.String())
}

func fieldValue(t *testing.T, data []byte, name string) string {
	t.Helper()
	doc, err := reader.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reparsing filled PDF: %v", err)
	}
	field, err := doc.FormField(name)
	if err != nil {
		t.Fatalf("FormField(%q): %v", name, err)
	}
	if field == nil {
		t.Fatalf("field %q missing after fill", name)
	}
	return field.Value
}

func TestFillTextField(t *testing.T) {
	var out bytes.Buffer
	result, err := Fill(bytes.NewReader(formFixture()), &out, map[string]string{
		"name": "Grace Hopper",
	})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(result.Filled) != 1 || result.Filled[0] != "name" {
		t.Errorf("Filled = %v, want [name]", result.Filled)
	}
	if len(result.Skipped) != 0 {
		t.Errorf("Skipped = %v, want empty", result.Skipped)
	}
	if v := fieldValue(t, out.Bytes(), "name"); v != "Grace Hopper" {
		t.Errorf("name = %q, want Grace Hopper", v)
	}
}

func TestFillReplacesExistingValue(t *testing.T) {
	var out bytes.Buffer
	_, err := Fill(bytes.NewReader(formFixture()), &out, map[string]string{
		"email": "new@example.com",
	})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if v := fieldValue(t, out.Bytes(), "email"); v != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", v)
	}
	if bytes.Contains(out.Bytes(), []byte("old@example.com")) {
		t.Error("old value still present in output")
	}
}

func TestFillCheckbox(t *testing.T) {
	var out bytes.Buffer
	_, err := Fill(bytes.NewReader(formFixture()), &out, map[string]string{
		"agree": "true",
	})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if v := fieldValue(t, out.Bytes(), "agree"); v != "Yes" {
		t.Errorf("agree = %q, want Yes", v)
	}
}

func TestFillSkipsUnknownAndReadOnly(t *testing.T) {
	var out bytes.Buffer
	result, err := Fill(bytes.NewReader(formFixture()), &out, map[string]string{
		"name":     "ok",
		"locked":   "nope",
		"no-field": "nope",
	})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(result.Filled) != 1 || result.Filled[0] != "name" {
		t.Errorf("Filled = %v, want [name]", result.Filled)
	}
	if len(result.Skipped) != 2 {
		t.Errorf("Skipped = %v, want locked and no-field", result.Skipped)
	}
	if v := fieldValue(t, out.Bytes(), "locked"); v != "" {
		t.Errorf("read-only field modified to %q", v)
	}
}

func TestFillEscapesSpecialCharacters(t *testing.T) {
	var out bytes.Buffer
	_, err := Fill(bytes.NewReader(formFixture()), &out, map[string]string{
		"name": `paren (and) back\slash`,
	})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if v := fieldValue(t, out.Bytes(), "name"); v != `paren (and) back\slash` {
		t.Errorf("name = %q, escaping round-trip broken", v)
	}
}

func TestFillNoFormError(t *testing.T) {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R >>",
	}
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
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefPos)

	var out bytes.Buffer
	if _, err := Fill(strings.NewReader(b.String()), &out, map[string]string{"x": "y"}); err == nil {
		t.Fatal("expected an error for a PDF without form fields")
	}
}

func TestRebuildXrefOffsets(t *testing.T) {
	data := formFixture()

	// Shift every object by injecting bytes, then rebuild.
	grown := bytes.Replace(data, []byte("/T (name)"), []byte("/T (name) /V (abcdef)"), 1)
	rebuilt := rebuildXref(grown)

	doc, err := reader.ReadFrom(bytes.NewReader(rebuilt))
	if err != nil {
		t.Fatalf("reparsing after xref rebuild: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("NumPages = %d, want 1", doc.NumPages())
	}
}
