package reader

import (
	"bytes"
	"testing"
)

// formPDF builds a document with a flat text field, a required field, a
// checkbox and a dropdown, plus one hierarchical field with two kids.
func formPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R 7 0 R 8 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Annots [4 0 R 5 0 R 6 0 R 7 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (name) /V (Ada) /DV (anonymous) /Rect [40 700 200 720] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (email) /Ff 2 /Rect [40 660 200 680] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Btn /T (agree) /V /Off /Rect [40 620 55 635] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Ch /T (country) /Opt [(USA) (Canada) (Mexico)] /Rect [40 580 200 600] >>",
		"<< /FT /Tx /T (address) /Kids [9 0 R 10 0 R] >>",
		"<< /T (street) /Parent 8 0 R >>",
		"<< /T (city) /Parent 8 0 R >>",
	}
	return buildPDF(objects, "/Root 1 0 R")
}

func TestFormFields(t *testing.T) {
	doc, err := ReadFrom(bytes.NewReader(formPDF()))
	if err != nil {
		t.Fatalf("reading form PDF: %v", err)
	}

	fields, err := doc.FormFields()
	if err != nil {
		t.Fatalf("FormFields: %v", err)
	}
	if len(fields) != 5 {
		t.Fatalf("got %d top-level fields, want 5", len(fields))
	}

	byName := make(map[string]*FormField)
	for _, f := range fields {
		byName[f.FullName] = f
	}

	name := byName["name"]
	if name == nil {
		t.Fatal("field \"name\" missing")
	}
	if name.Type != "Tx" {
		t.Errorf("name.Type = %q, want Tx", name.Type)
	}
	if name.Value != "Ada" {
		t.Errorf("name.Value = %q, want Ada", name.Value)
	}
	if name.Default != "anonymous" {
		t.Errorf("name.Default = %q, want anonymous", name.Default)
	}
	if name.Rect.Width() != 160 || name.Rect.Height() != 20 {
		t.Errorf("name.Rect = %v, want 160x20", name.Rect)
	}

	email := byName["email"]
	if email == nil || !email.IsRequired() {
		t.Error("field \"email\" should be required")
	}
	if email != nil && email.IsReadOnly() {
		t.Error("field \"email\" should not be read-only")
	}

	if agree := byName["agree"]; agree == nil || agree.Type != "Btn" || agree.Value != "Off" {
		t.Errorf("field \"agree\" = %+v, want Btn with value Off", agree)
	}

	country := byName["country"]
	if country == nil || country.Type != "Ch" {
		t.Fatalf("field \"country\" = %+v, want Ch", country)
	}
	wantOpts := []string{"USA", "Canada", "Mexico"}
	if len(country.Options) != len(wantOpts) {
		t.Fatalf("country options = %v, want %v", country.Options, wantOpts)
	}
	for i, opt := range wantOpts {
		if country.Options[i] != opt {
			t.Errorf("country option %d = %q, want %q", i, country.Options[i], opt)
		}
	}
}

func TestFormFieldHierarchy(t *testing.T) {
	doc, err := ReadFrom(bytes.NewReader(formPDF()))
	if err != nil {
		t.Fatalf("reading form PDF: %v", err)
	}

	street, err := doc.FormField("address.street")
	if err != nil {
		t.Fatalf("FormField: %v", err)
	}
	if street == nil {
		t.Fatal("field \"address.street\" not found")
	}
	if street.Name != "street" {
		t.Errorf("street.Name = %q, want street", street.Name)
	}
	// Kids without an /FT inherit the parent's type.
	if street.Type != "Tx" {
		t.Errorf("street.Type = %q, want inherited Tx", street.Type)
	}

	parent, err := doc.FormField("address")
	if err != nil {
		t.Fatalf("FormField: %v", err)
	}
	if parent == nil || len(parent.Kids) != 2 {
		t.Fatalf("parent field = %+v, want 2 kids", parent)
	}
}

func TestFormFieldsNoAcroForm(t *testing.T) {
	doc, err := ReadFrom(bytes.NewReader(onePagePDF(helloContent("plain"))))
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}

	fields, err := doc.FormFields()
	if err != nil {
		t.Fatalf("FormFields: %v", err)
	}
	if fields == nil {
		t.Fatal("FormFields returned nil, want empty slice")
	}
	if len(fields) != 0 {
		t.Errorf("got %d fields, want 0", len(fields))
	}
}

func TestFormFieldNotFound(t *testing.T) {
	doc, err := ReadFrom(bytes.NewReader(formPDF()))
	if err != nil {
		t.Fatalf("reading form PDF: %v", err)
	}

	f, err := doc.FormField("no-such-field")
	if err != nil {
		t.Fatalf("FormField: %v", err)
	}
	if f != nil {
		t.Errorf("got %+v, want nil", f)
	}
}
