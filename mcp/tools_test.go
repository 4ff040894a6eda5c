package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvillar/pdfmcp"
)

func newSandboxedConfig(dir string) pdfmcp.Config {
	return pdfmcp.NewConfig(pdfmcp.WithResourceDirs(dir))
}

// fixturePDF builds a minimal PDF with one page per text string.
func fixturePDF(texts ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	fontNum := 3 + 2*len(texts)
	var kids []string
	for i := range texts {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}
	objects = append(objects, fmt.Sprintf(
		"<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		strings.Join(kids, " "), len(texts)))

	for i, text := range texts {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>",
			4+2*i, fontNum))
		content := fmt.Sprintf("BT\n/F1 12 Tf\n72 700 Td\n(%s) Tj\nET", text)
		objects = append(objects, fmt.Sprintf(
			"<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

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

func fixtureBase64(texts ...string) string {
	return base64.StdEncoding.EncodeToString(fixturePDF(texts...))
}

// callTool invokes a tool and decodes the ToolResult from the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) ToolResult {
	t.Helper()

	resp := sendRequest(t, s, "tools/call", 1, map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if resp.Error != nil {
		t.Fatalf("tool %s: protocol error: %s", name, resp.Error.Message)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encoding result: %v", err)
	}
	var result ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decoding tool result: %v", err)
	}
	return result
}

func resultText(result ToolResult) string {
	var b strings.Builder
	for _, c := range result.Content {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestExtractTextTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "extract_text", map[string]interface{}{
		"base64": fixtureBase64("Hello layout", "Second page"),
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	text := resultText(result)
	if !strings.Contains(text, "Hello layout") {
		t.Errorf("missing page 1 text: %q", text)
	}
	if !strings.Contains(text, "Second page") {
		t.Errorf("missing page 2 text: %q", text)
	}
	if !strings.Contains(text, "--- Page 2 ---") {
		t.Errorf("missing page separator: %q", text)
	}
}

func TestExtractTextToolPageRange(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "extract_text", map[string]interface{}{
		"base64": fixtureBase64("alpha", "beta", "gamma"),
		"pages":  "2",
	})
	text := resultText(result)
	if !strings.Contains(text, "beta") {
		t.Errorf("missing selected page text: %q", text)
	}
	if strings.Contains(text, "alpha") || strings.Contains(text, "gamma") {
		t.Errorf("unselected pages leaked into output: %q", text)
	}
}

func TestExtractMetadataTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "extract_metadata", map[string]interface{}{
		"base64": fixtureBase64("one", "two"),
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	var info struct {
		Version  string `json:"version"`
		NumPages int    `json:"numPages"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if info.NumPages != 2 {
		t.Errorf("numPages = %d, want 2", info.NumPages)
	}
	if info.Version != "1.7" {
		t.Errorf("version = %q, want 1.7", info.Version)
	}
}

func TestSearchTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "search", map[string]interface{}{
		"base64": fixtureBase64("the quick brown fox", "no match here"),
		"query":  "Quick",
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	var out struct {
		Total   int `json:"total"`
		Matches []struct {
			Page    int    `json:"page"`
			Context string `json:"context"`
		} `json:"matches"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &out); err != nil {
		t.Fatalf("decoding matches: %v", err)
	}
	if out.Total != 1 {
		t.Fatalf("total = %d, want 1", out.Total)
	}
	if out.Matches[0].Page != 1 {
		t.Errorf("match page = %d, want 1", out.Matches[0].Page)
	}
	if !strings.Contains(out.Matches[0].Context, "quick") {
		t.Errorf("context %q missing the match", out.Matches[0].Context)
	}
}

func TestSearchToolMissingQuery(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "search", map[string]interface{}{
		"base64": fixtureBase64("anything"),
	})
	if !result.IsError {
		t.Fatal("expected isError result for missing query")
	}
	if !strings.Contains(resultText(result), "query") {
		t.Errorf("error should name the missing argument: %q", resultText(result))
	}
}

func TestGetPageInfoTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "get_page_info", map[string]interface{}{
		"base64": fixtureBase64("hello"),
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	var out struct {
		NumPages int `json:"numPages"`
		Pages    []struct {
			Width       float64 `json:"width"`
			Height      float64 `json:"height"`
			Orientation string  `json:"orientation"`
			CharCount   int     `json:"charCount"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &out); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if out.NumPages != 1 || len(out.Pages) != 1 {
		t.Fatalf("unexpected page counts: %+v", out)
	}
	p := out.Pages[0]
	if p.Width != 612 || p.Height != 792 {
		t.Errorf("dimensions = %vx%v, want 612x792", p.Width, p.Height)
	}
	if p.Orientation != "portrait" {
		t.Errorf("orientation = %q, want portrait", p.Orientation)
	}
	if p.CharCount == 0 {
		t.Error("charCount should be nonzero")
	}
}

func TestSummarizeStructureTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "summarize_structure", map[string]interface{}{
		"base64": fixtureBase64("hello world", "second page"),
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	var out struct {
		Version   string `json:"version"`
		NumPages  int    `json:"numPages"`
		Encrypted bool   `json:"encrypted"`
		Totals    struct {
			CharCount       int `json:"charCount"`
			EstimatedTokens int `json:"estimatedTokens"`
			Images          int `json:"images"`
		} `json:"totals"`
		Pages []struct {
			Page        int    `json:"page"`
			Orientation string `json:"orientation"`
			CharCount   int    `json:"charCount"`
		} `json:"pages"`
		Outline struct {
			Present   bool `json:"present"`
			ItemCount int  `json:"itemCount"`
		} `json:"outline"`
		FormFields struct {
			Count int `json:"count"`
		} `json:"formFields"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &out); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}

	if out.NumPages != 2 || len(out.Pages) != 2 {
		t.Fatalf("page counts = %d/%d, want 2/2", out.NumPages, len(out.Pages))
	}
	if out.Version != "1.7" {
		t.Errorf("version = %q, want 1.7", out.Version)
	}
	if out.Encrypted {
		t.Error("plain fixture reported as encrypted")
	}
	if out.Pages[0].Orientation != "portrait" {
		t.Errorf("orientation = %q, want portrait", out.Pages[0].Orientation)
	}
	if out.Pages[0].CharCount == 0 || out.Pages[1].CharCount == 0 {
		t.Error("per-page charCount should be nonzero")
	}
	if out.Totals.CharCount != out.Pages[0].CharCount+out.Pages[1].CharCount {
		t.Errorf("totals.charCount = %d, want sum of pages", out.Totals.CharCount)
	}
	if out.Totals.EstimatedTokens == 0 {
		t.Error("totals.estimatedTokens should be nonzero")
	}
	if out.Totals.Images != 0 {
		t.Errorf("totals.images = %d, want 0", out.Totals.Images)
	}
	if out.Outline.Present || out.Outline.ItemCount != 0 {
		t.Errorf("fixture has no outline, got %+v", out.Outline)
	}
	if out.FormFields.Count != 0 {
		t.Errorf("fixture has no form, got %d fields", out.FormFields.Count)
	}
}

func TestSummarizeStructureToolEncrypted(t *testing.T) {
	s := newTestServer(t)

	// Protect a fixture, then summarize the protected bytes.
	protect := callTool(t, s, "protect_pdf", map[string]interface{}{
		"base64":        fixtureBase64("locked"),
		"user_password": "pw",
	})
	if protect.IsError {
		t.Fatalf("protect error: %s", resultText(protect))
	}
	text := resultText(protect)
	idx := strings.Index(text, "cache_key: ")
	if idx < 0 {
		t.Fatalf("no cache key in protect result: %q", text)
	}
	key := strings.TrimSpace(text[idx+len("cache_key: "):])

	result := callTool(t, s, "summarize_structure", map[string]interface{}{
		"cache_key": key,
		"password":  "pw",
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), `"encrypted": true`) {
		t.Errorf("protected document not reported as encrypted: %s", resultText(result))
	}
}

func TestSplitPDFToolCachesResult(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "split_pdf", map[string]interface{}{
		"base64": fixtureBase64("first", "second", "third"),
		"pages":  "2-3",
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	text := resultText(result)
	idx := strings.Index(text, "cache_key: ")
	if idx < 0 {
		t.Fatalf("no cache key in result: %q", text)
	}
	key := strings.TrimSpace(text[idx+len("cache_key: "):])

	// The cached document is usable as a source in a follow-up call.
	meta := callTool(t, s, "extract_metadata", map[string]interface{}{
		"cache_key": key,
	})
	if meta.IsError {
		t.Fatalf("follow-up error: %s", resultText(meta))
	}
	if !strings.Contains(resultText(meta), `"numPages": 2`) {
		t.Errorf("split result should have 2 pages: %s", resultText(meta))
	}
}

func TestRotatePagesToolBadAngle(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "rotate_pages", map[string]interface{}{
		"base64": fixtureBase64("page"),
		"angle":  45,
	})
	if !result.IsError {
		t.Fatal("expected isError result for a non-multiple-of-90 angle")
	}
}

func TestMergePDFsTool(t *testing.T) {
	s := newTestServer(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, fixturePDF("from file"), 0644); err != nil {
		t.Fatal(err)
	}

	result := callTool(t, s, "merge_pdfs", map[string]interface{}{
		"sources": []interface{}{
			map[string]interface{}{"path": path},
			map[string]interface{}{"base64": fixtureBase64("inline one", "inline two")},
		},
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), "2 inputs") {
		t.Errorf("unexpected result: %q", resultText(result))
	}
}

func TestProtectPDFToolWritesFile(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t)

	out := filepath.Join(dir, "locked.pdf")
	result := callTool(t, s, "protect_pdf", map[string]interface{}{
		"base64":        fixtureBase64("secret stuff"),
		"user_password": "hunter2",
		"output_path":   out,
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "/Encrypt") {
		t.Error("output has no /Encrypt dictionary")
	}

	// Round trip: the protected file opens with the password.
	text := callTool(t, s, "extract_text", map[string]interface{}{
		"path":     out,
		"password": "hunter2",
	})
	if text.IsError {
		t.Fatalf("extracting from protected file: %s", resultText(text))
	}
	if !strings.Contains(resultText(text), "secret stuff") {
		t.Errorf("text lost after protection: %q", resultText(text))
	}
}

func TestConvertPageToImageTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "convert_page_to_image", map[string]interface{}{
		"base64": fixtureBase64("render me"),
		"width":  200,
	})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}
	if len(result.Content) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(result.Content))
	}
	block := result.Content[0]
	if block.Type != "image" || block.MIMEType != "image/png" {
		t.Errorf("unexpected block type %s/%s", block.Type, block.MIMEType)
	}
	img, err := base64.StdEncoding.DecodeString(block.Data)
	if err != nil {
		t.Fatalf("decoding image data: %v", err)
	}
	if len(img) < 8 || string(img[1:4]) != "PNG" {
		t.Error("data is not a PNG")
	}
}

func TestListPDFsTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doc.pdf"), fixturePDF("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewServerWithIO(nil, nil)
	s.SetLogger(log.New(io.Discard, "", 0))
	NewToolset(newSandboxedConfig(dir)).Register(s)

	result := callTool(t, s, "list_pdfs", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(result))
	}

	text := resultText(result)
	if !strings.Contains(text, "doc.pdf") {
		t.Errorf("missing doc.pdf in listing: %s", text)
	}
	if strings.Contains(text, "notes.txt") {
		t.Errorf("non-PDF file listed: %s", text)
	}
}

func TestPathToolRespectsSandbox(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "outside.pdf")
	if err := os.WriteFile(outside, fixturePDF("x"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewServerWithIO(nil, nil)
	s.SetLogger(log.New(io.Discard, "", 0))
	NewToolset(newSandboxedConfig(dir)).Register(s)

	result := callTool(t, s, "extract_text", map[string]interface{}{
		"path": outside,
	})
	if !result.IsError {
		t.Fatal("expected isError result for a path outside the sandbox")
	}
	if !strings.Contains(resultText(result), "allowed resource directories") {
		t.Errorf("unexpected error text: %q", resultText(result))
	}
}

func TestTextResource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, fixturePDF("resource text"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(t)

	resp := sendRequest(t, s, "resources/read", 9, map[string]interface{}{
		"uri": "pdf://text?path=" + path,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}

	raw, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(raw), "resource text") {
		t.Errorf("resource content missing text: %s", raw)
	}
}

func TestCacheResource(t *testing.T) {
	s := newTestServer(t)

	// Prime the cache through a tool call.
	callTool(t, s, "extract_metadata", map[string]interface{}{
		"base64": fixtureBase64("cached doc"),
		"cache":  true,
	})

	resp := sendRequest(t, s, "resources/read", 10, map[string]interface{}{
		"uri": "pdf://cache",
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}

	raw, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(raw), `\"count\": 1`) && !strings.Contains(string(raw), `"count": 1`) {
		t.Errorf("cache listing should have one entry: %s", raw)
	}
}
