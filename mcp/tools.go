package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lvillar/pdfmcp"
	"github.com/lvillar/pdfmcp/form"
	"github.com/lvillar/pdfmcp/layout"
	"github.com/lvillar/pdfmcp/pageops"
	"github.com/lvillar/pdfmcp/reader"
	"github.com/lvillar/pdfmcp/render"
	"github.com/lvillar/pdfmcp/source"
)

// Toolset carries the shared state behind every tool handler: the server
// configuration and the document resolver with its cache.
type Toolset struct {
	cfg      pdfmcp.Config
	resolver *source.Resolver
}

// NewToolset builds a Toolset from the given configuration.
func NewToolset(cfg pdfmcp.Config) *Toolset {
	cache := source.NewCache(cfg.CacheMaxEntries, cfg.CacheMaxBytes)
	return &Toolset{cfg: cfg, resolver: source.NewResolver(cfg, cache)}
}

// Register adds every PDF tool and resource to the server.
func (ts *Toolset) Register(s *Server) {
	s.AddTool(ts.extractTextTool())
	s.AddTool(ts.extractMetadataTool())
	s.AddTool(ts.extractOutlineTool())
	s.AddTool(ts.searchTool())
	s.AddTool(ts.extractAnnotationsTool())
	s.AddTool(ts.extractLinksTool())
	s.AddTool(ts.getPageInfoTool())
	s.AddTool(ts.summarizeStructureTool())
	s.AddTool(ts.extractFormFieldsTool())
	s.AddTool(ts.fillFormTool())
	s.AddTool(ts.flattenFormTool())
	s.AddTool(ts.splitPDFTool())
	s.AddTool(ts.mergePDFsTool())
	s.AddTool(ts.rotatePagesTool())
	s.AddTool(ts.compressPDFTool())
	s.AddTool(ts.protectPDFTool())
	s.AddTool(ts.unprotectPDFTool())
	s.AddTool(ts.addWatermarkTool())
	s.AddTool(ts.addPageNumbersTool())
	s.AddTool(ts.convertPageToImageTool())
	s.AddTool(ts.listPDFsTool())
	ts.registerResources(s)
}

// ---------------------------------------------------------------------------
// Argument helpers

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func intArg(args map[string]interface{}, key string, def int) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return def
}

func floatArg(args map[string]interface{}, key string, def float64) float64 {
	if f, ok := args[key].(float64); ok {
		return f
	}
	return def
}

// sourceData resolves the PDF source union from the tool arguments. When
// the "cache" flag is set and the data did not already come from the cache,
// the resolved bytes are stored and the new key is returned.
func (ts *Toolset) sourceData(args map[string]interface{}) ([]byte, string, error) {
	src := source.Source{
		Path:     stringArg(args, "path"),
		Base64:   stringArg(args, "base64"),
		URL:      stringArg(args, "url"),
		CacheKey: stringArg(args, "cache_key"),
	}
	data, err := ts.resolver.Resolve(context.Background(), src)
	if err != nil {
		return nil, "", err
	}

	var key string
	if boolArg(args, "cache", false) && src.CacheKey == "" {
		name := src.Path
		if name == "" {
			name = src.URL
		}
		if name == "" {
			name = "inline"
		}
		key, err = ts.resolver.Cache().Put(data, name)
		if err != nil {
			return nil, "", err
		}
	}
	return data, key, nil
}

// openDocument resolves the source and parses it, using the optional
// "password" argument for encrypted files.
func (ts *Toolset) openDocument(args map[string]interface{}) (*reader.Document, string, error) {
	data, key, err := ts.sourceData(args)
	if err != nil {
		return nil, "", err
	}
	doc, err := reader.ReadFromWithPassword(bytes.NewReader(data), stringArg(args, "password"))
	if err != nil {
		return nil, "", err
	}
	return doc, key, nil
}

// selectPages parses the optional "pages" range argument ("1-3,7"). A
// missing argument selects every page.
func selectPages(args map[string]interface{}, numPages int) ([]int, error) {
	spec := stringArg(args, "pages")
	if spec == "" {
		pages := make([]int, numPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}
	return pageops.ParsePageRange(spec, numPages)
}

// layoutConfig builds the per-page extraction config from the tool
// arguments, starting from the recommended defaults.
func layoutConfig(args map[string]interface{}, page *reader.Page) layout.Config {
	cfg := layout.DefaultConfig()
	if !boolArg(args, "preserve_paragraphs", true) {
		cfg.ParagraphMode = layout.ParagraphNone
	}
	if !boolArg(args, "detect_columns", true) {
		cfg.ColumnMode = layout.ColumnNone
	}
	if !boolArg(args, "filter_watermarks", true) {
		cfg.WatermarkMode = layout.WatermarkNone
	}
	cfg.DynamicThresholds = boolArg(args, "dynamic_thresholds", true)
	cfg.PageWidth = page.MediaBox.Width()
	cfg.PageHeight = page.MediaBox.Height()
	return cfg
}

// deliver hands produced PDF bytes back to the client: written to
// output_path when given (subject to the resource-dir sandbox), otherwise
// stored in the cache so follow-up calls can reference them by key.
func (ts *Toolset) deliver(args map[string]interface{}, produced *bytes.Buffer, desc string) (ToolResult, error) {
	if outputPath := stringArg(args, "output_path"); outputPath != "" {
		resolved, err := source.ValidatePath(outputPath, ts.cfg.ResourceDirs)
		if err != nil {
			return ToolResult{}, err
		}
		if err := os.WriteFile(resolved, produced.Bytes(), 0644); err != nil {
			return ToolResult{}, fmt.Errorf("mcp: writing output: %w", err)
		}
		return textResult(fmt.Sprintf("%s written to %s (%d bytes)", desc, outputPath, produced.Len())), nil
	}

	key, err := ts.resolver.Cache().Put(produced.Bytes(), desc)
	if err != nil {
		return ToolResult{}, err
	}
	return textResult(fmt.Sprintf("%s stored in cache (%d bytes). cache_key: %s", desc, produced.Len(), key)), nil
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func jsonResult(v interface{}) (ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ToolResult{}, fmt.Errorf("mcp: encoding result: %w", err)
	}
	return textResult(string(data)), nil
}

func missingArg(name string) error {
	return fmt.Errorf("%w: missing %q argument", pdfmcp.ErrInvalidParam, name)
}

// ---------------------------------------------------------------------------
// Schema helpers

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}

// sourceProps returns the schema fragment shared by every tool that takes
// a PDF source: exactly one of path, base64, url, or cache_key.
func sourceProps() map[string]interface{} {
	return map[string]interface{}{
		"path":      prop("string", "Filesystem path to the PDF"),
		"base64":    prop("string", "PDF bytes as base64 (data URL prefix allowed)"),
		"url":       prop("string", "HTTP(S) URL to fetch the PDF from"),
		"cache_key": prop("string", "Key of a previously cached document"),
		"password":  prop("string", "Password for encrypted PDFs"),
		"cache":     prop("boolean", "Store the resolved document in the cache and return its key"),
	}
}

func schema(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func sourceSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := sourceProps()
	for k, v := range extra {
		props[k] = v
	}
	return schema(props, required...)
}

// ---------------------------------------------------------------------------
// Extraction tools

func (ts *Toolset) extractTextTool() Tool {
	return Tool{
		Name: "extract_text",
		Description: "Extract text from a PDF in reading order. Reconstructs paragraphs, " +
			"re-orders two-column layouts, and filters repeated watermarks.",
		InputSchema: sourceSchema(map[string]interface{}{
			"pages":               prop("string", "Page range like '1-3,7' (default: all pages)"),
			"preserve_paragraphs": prop("boolean", "Insert blank lines between paragraphs (default true)"),
			"detect_columns":      prop("boolean", "Re-order two-column pages into one stream (default true)"),
			"filter_watermarks":   prop("boolean", "Drop centered oversized overlay text (default true)"),
			"dynamic_thresholds":  prop("boolean", "Adapt tolerances to the page's font sizes (default true)"),
			"include_metadata":    prop("boolean", "Prepend document metadata"),
			"include_images":      prop("boolean", "Note embedded images per page"),
		}),
		Handler: ts.handleExtractText,
	}
}

func (ts *Toolset) handleExtractText(args map[string]interface{}) (ToolResult, error) {
	doc, key, err := ts.openDocument(args)
	if err != nil {
		return ToolResult{}, err
	}
	pages, err := selectPages(args, doc.NumPages())
	if err != nil {
		return ToolResult{}, err
	}

	var out strings.Builder
	if boolArg(args, "include_metadata", false) {
		meta := doc.Metadata()
		if len(meta) > 0 {
			data, _ := json.MarshalIndent(meta, "", "  ")
			fmt.Fprintf(&out, "--- Metadata ---\n%s\n\n", data)
		}
	}

	for _, n := range pages {
		page, err := doc.Page(n)
		if err != nil {
			return ToolResult{}, err
		}
		text, err := page.ExtractTextWithConfig(layoutConfig(args, page))
		if err != nil {
			fmt.Fprintf(&out, "--- Page %d (error extracting text) ---\n\n", n)
			continue
		}
		fmt.Fprintf(&out, "--- Page %d ---\n%s\n", n, text)
		if boolArg(args, "include_images", false) {
			images, err := page.Images()
			if err == nil {
				for _, img := range images {
					fmt.Fprintf(&out, "[image %s: %dx%d %s]\n", img.Name, img.Width, img.Height, img.MIMEType)
				}
			}
		}
		out.WriteString("\n")
	}

	if key != "" {
		fmt.Fprintf(&out, "cache_key: %s\n", key)
	}
	return textResult(out.String()), nil
}

func (ts *Toolset) extractMetadataTool() Tool {
	return Tool{
		Name:        "extract_metadata",
		Description: "Read document metadata: PDF version, page count, title, author, dates.",
		InputSchema: sourceSchema(nil),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			doc, key, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			info := map[string]interface{}{
				"version":  doc.Version,
				"numPages": doc.NumPages(),
				"metadata": doc.Metadata(),
			}
			if key != "" {
				info["cacheKey"] = key
			}
			return jsonResult(info)
		},
	}
}

type outlineJSON struct {
	Title    string        `json:"title"`
	Page     int           `json:"page,omitempty"`
	Children []outlineJSON `json:"children,omitempty"`
}

func outlineTree(items []reader.OutlineItem) []outlineJSON {
	out := make([]outlineJSON, 0, len(items))
	for _, it := range items {
		out = append(out, outlineJSON{
			Title:    it.Title,
			Page:     it.Page,
			Children: outlineTree(it.Children),
		})
	}
	return out
}

func (ts *Toolset) extractOutlineTool() Tool {
	return Tool{
		Name:        "extract_outline",
		Description: "Read the document outline (bookmarks) as a tree with target page numbers.",
		InputSchema: sourceSchema(nil),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			doc, _, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			items, err := doc.Outline()
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(map[string]interface{}{"outline": outlineTree(items)})
		},
	}
}

func (ts *Toolset) searchTool() Tool {
	return Tool{
		Name:        "search",
		Description: "Search the document's extracted text for a query string, returning page numbers and surrounding context.",
		InputSchema: sourceSchema(map[string]interface{}{
			"query":          prop("string", "Text to search for"),
			"case_sensitive": prop("boolean", "Match case exactly (default false)"),
			"max_results":    prop("number", "Stop after this many matches (default 20)"),
			"context_chars":  prop("number", "Characters of context on each side (default 50)"),
		}, "query"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			query := stringArg(args, "query")
			if query == "" {
				return ToolResult{}, missingArg("query")
			}
			doc, _, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			matches, err := doc.Search(query,
				boolArg(args, "case_sensitive", false),
				intArg(args, "max_results", 20),
				intArg(args, "context_chars", 50))
			if err != nil {
				return ToolResult{}, err
			}

			results := make([]map[string]interface{}, 0, len(matches))
			for _, m := range matches {
				results = append(results, map[string]interface{}{
					"page":     m.Page,
					"position": m.Position,
					"context":  m.Context,
				})
			}
			return jsonResult(map[string]interface{}{
				"query":   query,
				"total":   len(results),
				"matches": results,
			})
		},
	}
}

func rectJSON(r reader.Rectangle) map[string]float64 {
	return map[string]float64{"llx": r.LLX, "lly": r.LLY, "urx": r.URX, "ury": r.URY}
}

func (ts *Toolset) extractAnnotationsTool() Tool {
	return Tool{
		Name:        "extract_annotations",
		Description: "List annotations (comments, highlights, notes) with their page, type, and contents.",
		InputSchema: sourceSchema(map[string]interface{}{
			"pages": prop("string", "Page range like '1-3,7' (default: all pages)"),
		}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			doc, _, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			pages, err := selectPages(args, doc.NumPages())
			if err != nil {
				return ToolResult{}, err
			}

			annots := make([]map[string]interface{}, 0)
			for _, n := range pages {
				page, err := doc.Page(n)
				if err != nil {
					return ToolResult{}, err
				}
				pageAnnots, err := page.Annotations()
				if err != nil {
					continue
				}
				for _, a := range pageAnnots {
					annots = append(annots, map[string]interface{}{
						"page":     n,
						"subtype":  a.Subtype,
						"contents": a.Contents,
						"rect":     rectJSON(a.Rect),
					})
				}
			}
			return jsonResult(map[string]interface{}{
				"count":       len(annots),
				"annotations": annots,
			})
		},
	}
}

func (ts *Toolset) extractLinksTool() Tool {
	return Tool{
		Name:        "extract_links",
		Description: "List link annotations with their target URL or internal page number.",
		InputSchema: sourceSchema(map[string]interface{}{
			"pages": prop("string", "Page range like '1-3,7' (default: all pages)"),
		}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			doc, _, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			pages, err := selectPages(args, doc.NumPages())
			if err != nil {
				return ToolResult{}, err
			}

			links := make([]map[string]interface{}, 0)
			for _, n := range pages {
				page, err := doc.Page(n)
				if err != nil {
					return ToolResult{}, err
				}
				pageLinks, err := page.Links()
				if err != nil {
					continue
				}
				for _, l := range pageLinks {
					entry := map[string]interface{}{
						"page": n,
						"rect": rectJSON(l.Rect),
					}
					if l.URI != "" {
						entry["uri"] = l.URI
					}
					if l.TargetPage > 0 {
						entry["targetPage"] = l.TargetPage
					}
					links = append(links, entry)
				}
			}
			return jsonResult(map[string]interface{}{
				"count": len(links),
				"links": links,
			})
		},
	}
}

func (ts *Toolset) getPageInfoTool() Tool {
	return Tool{
		Name:        "get_page_info",
		Description: "Report per-page geometry and text statistics: dimensions, rotation, orientation, character and estimated token counts.",
		InputSchema: sourceSchema(map[string]interface{}{
			"pages": prop("string", "Page range like '1-3,7' (default: all pages)"),
		}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			doc, _, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			pages, err := selectPages(args, doc.NumPages())
			if err != nil {
				return ToolResult{}, err
			}

			infos := make([]map[string]interface{}, 0, len(pages))
			for _, n := range pages {
				page, err := doc.Page(n)
				if err != nil {
					return ToolResult{}, err
				}
				info := page.Info()
				infos = append(infos, map[string]interface{}{
					"page":            info.Page,
					"width":           info.Width,
					"height":          info.Height,
					"rotation":        info.Rotation,
					"orientation":     info.Orientation,
					"charCount":       info.CharCount,
					"estimatedTokens": info.EstimatedTokens,
				})
			}
			return jsonResult(map[string]interface{}{
				"numPages": doc.NumPages(),
				"pages":    infos,
			})
		},
	}
}

func countOutlineItems(items []reader.OutlineItem) int {
	n := len(items)
	for _, it := range items {
		n += countOutlineItems(it.Children)
	}
	return n
}

func (ts *Toolset) summarizeStructureTool() Tool {
	return Tool{
		Name: "summarize_structure",
		Description: "One-call document overview: page count, per-page text statistics, " +
			"image/link/annotation counts, outline presence, form field types, and encryption status.",
		InputSchema: sourceSchema(nil),
		Handler:     ts.handleSummarizeStructure,
	}
}

func (ts *Toolset) handleSummarizeStructure(args map[string]interface{}) (ToolResult, error) {
	doc, key, err := ts.openDocument(args)
	if err != nil {
		return ToolResult{}, err
	}

	var totalChars, totalTokens, totalImages, totalLinks, totalAnnots int
	pages := make([]map[string]interface{}, 0, doc.NumPages())
	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			return ToolResult{}, err
		}
		info := page.Info()

		// Count failures degrade to zero rather than failing the summary.
		var imageCount, linkCount, annotCount int
		if images, err := page.Images(); err == nil {
			imageCount = len(images)
		}
		if links, err := page.Links(); err == nil {
			linkCount = len(links)
		}
		if annots, err := page.Annotations(); err == nil {
			annotCount = len(annots)
		}

		totalChars += info.CharCount
		totalTokens += info.EstimatedTokens
		totalImages += imageCount
		totalLinks += linkCount
		totalAnnots += annotCount

		pages = append(pages, map[string]interface{}{
			"page":            info.Page,
			"width":           info.Width,
			"height":          info.Height,
			"rotation":        info.Rotation,
			"orientation":     info.Orientation,
			"charCount":       info.CharCount,
			"estimatedTokens": info.EstimatedTokens,
			"imageCount":      imageCount,
			"linkCount":       linkCount,
			"annotationCount": annotCount,
		})
	}

	summary := map[string]interface{}{
		"version":   doc.Version,
		"numPages":  doc.NumPages(),
		"encrypted": doc.Encrypted(),
		"metadata":  doc.Metadata(),
		"totals": map[string]interface{}{
			"charCount":       totalChars,
			"estimatedTokens": totalTokens,
			"images":          totalImages,
			"links":           totalLinks,
			"annotations":     totalAnnots,
		},
		"pages": pages,
	}

	if items, err := doc.Outline(); err == nil {
		summary["outline"] = map[string]interface{}{
			"present":   len(items) > 0,
			"itemCount": countOutlineItems(items),
		}
	}

	fieldTypes := make(map[string]int)
	if fields, err := doc.FormFields(); err == nil {
		flat := flattenFormFields(fields)
		for _, f := range flat {
			fieldTypes[f.Type]++
		}
		summary["formFields"] = map[string]interface{}{
			"count": len(flat),
			"types": fieldTypes,
		}
	}

	if key != "" {
		summary["cacheKey"] = key
	}
	return jsonResult(summary)
}

// ---------------------------------------------------------------------------
// Form tools

func formFieldJSON(fields []*reader.FormField) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(fields))
	for _, f := range flattenFormFields(fields) {
		fi := map[string]interface{}{
			"name":     f.FullName,
			"type":     f.Type,
			"value":    f.Value,
			"readOnly": f.IsReadOnly(),
			"required": f.IsRequired(),
		}
		if len(f.Options) > 0 {
			fi["options"] = f.Options
		}
		out = append(out, fi)
	}
	return out
}

// flattenFormFields recursively collects all form fields.
func flattenFormFields(fields []*reader.FormField) []*reader.FormField {
	var result []*reader.FormField
	for _, f := range fields {
		result = append(result, f)
		if len(f.Kids) > 0 {
			result = append(result, flattenFormFields(f.Kids)...)
		}
	}
	return result
}

func (ts *Toolset) extractFormFieldsTool() Tool {
	return Tool{
		Name:        "extract_form_fields",
		Description: "List AcroForm fields with their full names, types, current values, options, and flags.",
		InputSchema: sourceSchema(nil),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			doc, _, err := ts.openDocument(args)
			if err != nil {
				return ToolResult{}, err
			}
			fields, err := doc.FormFields()
			if err != nil {
				return ToolResult{}, err
			}
			infos := formFieldJSON(fields)
			return jsonResult(map[string]interface{}{
				"fieldCount": len(infos),
				"fields":     infos,
			})
		},
	}
}

func (ts *Toolset) fillFormTool() Tool {
	return Tool{
		Name:        "fill_form",
		Description: "Fill AcroForm fields by name. Unknown and read-only fields are skipped and reported.",
		InputSchema: sourceSchema(map[string]interface{}{
			"values":      prop("object", "Map of field names to values"),
			"output_path": prop("string", "Where to write the filled PDF (default: cache)"),
		}, "values"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			valuesRaw, ok := args["values"].(map[string]interface{})
			if !ok {
				return ToolResult{}, missingArg("values")
			}
			values := make(map[string]string, len(valuesRaw))
			for k, v := range valuesRaw {
				values[k] = fmt.Sprintf("%v", v)
			}

			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}

			var buf bytes.Buffer
			result, err := form.Fill(bytes.NewReader(data), &buf, values)
			if err != nil {
				return ToolResult{}, err
			}

			delivered, err := ts.deliver(args, &buf, "Filled PDF")
			if err != nil {
				return ToolResult{}, err
			}
			summary, _ := json.MarshalIndent(result, "", "  ")
			delivered.Content = append(delivered.Content, ContentBlock{Type: "text", Text: string(summary)})
			return delivered, nil
		},
	}
}

func (ts *Toolset) flattenFormTool() Tool {
	return Tool{
		Name:        "flatten_form",
		Description: "Flatten a PDF form: widgets stop being editable while their values stay visible.",
		InputSchema: sourceSchema(map[string]interface{}{
			"output_path": prop("string", "Where to write the flattened PDF (default: cache)"),
		}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}
			var buf bytes.Buffer
			if err := form.Flatten(bytes.NewReader(data), &buf); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, "Flattened PDF")
		},
	}
}

// ---------------------------------------------------------------------------
// Page operation tools

func (ts *Toolset) splitPDFTool() Tool {
	return Tool{
		Name:        "split_pdf",
		Description: "Extract a subset of pages into a new PDF.",
		InputSchema: sourceSchema(map[string]interface{}{
			"pages":       prop("string", "Page range like '1-3,7'"),
			"output_path": prop("string", "Where to write the result (default: cache)"),
		}, "pages"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			if stringArg(args, "pages") == "" {
				return ToolResult{}, missingArg("pages")
			}
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}
			doc, err := reader.ReadFrom(bytes.NewReader(data))
			if err != nil {
				return ToolResult{}, err
			}
			pages, err := pageops.ParsePageRange(stringArg(args, "pages"), doc.NumPages())
			if err != nil {
				return ToolResult{}, err
			}

			var buf bytes.Buffer
			if err := pageops.ExtractPages(&buf, data, pages...); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, fmt.Sprintf("PDF with %d pages", len(pages)))
		},
	}
}

func (ts *Toolset) mergePDFsTool() Tool {
	return Tool{
		Name: "merge_pdfs",
		Description: "Merge two or more PDFs into one, in order. Each source is an object " +
			"with one of path, base64, url, or cache_key.",
		InputSchema: schema(map[string]interface{}{
			"sources": map[string]interface{}{
				"type":        "array",
				"items":       schema(sourceProps()),
				"description": "PDF sources to merge, in order",
			},
			"output_path": prop("string", "Where to write the merged PDF (default: cache)"),
		}, "sources"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			sourcesRaw, ok := args["sources"].([]interface{})
			if !ok || len(sourcesRaw) < 2 {
				return ToolResult{}, fmt.Errorf("%w: 'sources' needs at least two entries", pdfmcp.ErrInvalidParam)
			}

			inputs := make([][]byte, 0, len(sourcesRaw))
			for i, raw := range sourcesRaw {
				srcArgs, ok := raw.(map[string]interface{})
				if !ok {
					return ToolResult{}, fmt.Errorf("%w: sources[%d] is not an object", pdfmcp.ErrInvalidParam, i)
				}
				data, _, err := ts.sourceData(srcArgs)
				if err != nil {
					return ToolResult{}, fmt.Errorf("sources[%d]: %w", i, err)
				}
				inputs = append(inputs, data)
			}

			var buf bytes.Buffer
			if err := pageops.Merge(&buf, inputs...); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, fmt.Sprintf("Merged PDF from %d inputs", len(inputs)))
		},
	}
}

func (ts *Toolset) rotatePagesTool() Tool {
	return Tool{
		Name:        "rotate_pages",
		Description: "Rotate pages by 90, 180, or 270 degrees (negative angles rotate counter-clockwise).",
		InputSchema: sourceSchema(map[string]interface{}{
			"angle":       prop("number", "Rotation in degrees, a multiple of 90"),
			"pages":       prop("string", "Page range like '1-3,7' (default: all pages)"),
			"output_path": prop("string", "Where to write the result (default: cache)"),
		}, "angle"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			angleF, ok := args["angle"].(float64)
			if !ok {
				return ToolResult{}, missingArg("angle")
			}
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}

			var pages []int
			if spec := stringArg(args, "pages"); spec != "" {
				doc, err := reader.ReadFrom(bytes.NewReader(data))
				if err != nil {
					return ToolResult{}, err
				}
				pages, err = pageops.ParsePageRange(spec, doc.NumPages())
				if err != nil {
					return ToolResult{}, err
				}
			}

			var buf bytes.Buffer
			if err := pageops.RotatePages(&buf, data, int(angleF), pages); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, fmt.Sprintf("PDF rotated by %d degrees", int(angleF)))
		},
	}
}

func (ts *Toolset) compressPDFTool() Tool {
	return Tool{
		Name:        "compress_pdf",
		Description: "Re-encode uncompressed content streams with Flate compression.",
		InputSchema: sourceSchema(map[string]interface{}{
			"output_path": prop("string", "Where to write the result (default: cache)"),
		}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}
			var buf bytes.Buffer
			if err := pageops.Compress(&buf, data); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf,
				fmt.Sprintf("Compressed PDF (%d -> %d bytes)", len(data), buf.Len()))
		},
	}
}

func (ts *Toolset) protectPDFTool() Tool {
	return Tool{
		Name:        "protect_pdf",
		Description: "Encrypt a PDF with RC4 128-bit security: a user password to open it and an owner password that bypasses permissions.",
		InputSchema: sourceSchema(map[string]interface{}{
			"user_password":  prop("string", "Password required to open the document"),
			"owner_password": prop("string", "Password that bypasses permissions (default: user password)"),
			"allow_print":    prop("boolean", "Permit printing (default true)"),
			"allow_copy":     prop("boolean", "Permit copying text (default true)"),
			"allow_modify":   prop("boolean", "Permit modifying content (default false)"),
			"allow_annotate": prop("boolean", "Permit adding annotations (default false)"),
			"output_path":    prop("string", "Where to write the result (default: cache)"),
		}, "user_password"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			userPass := stringArg(args, "user_password")
			if userPass == "" {
				return ToolResult{}, missingArg("user_password")
			}
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}

			perms := pageops.Permissions{
				Print:    boolArg(args, "allow_print", true),
				Copy:     boolArg(args, "allow_copy", true),
				Modify:   boolArg(args, "allow_modify", false),
				Annotate: boolArg(args, "allow_annotate", false),
			}

			var buf bytes.Buffer
			if err := pageops.Protect(&buf, data, userPass, stringArg(args, "owner_password"), perms); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, "Password-protected PDF")
		},
	}
}

func (ts *Toolset) unprotectPDFTool() Tool {
	return Tool{
		Name:        "unprotect_pdf",
		Description: "Remove password protection from a PDF, given its user or owner password.",
		InputSchema: sourceSchema(map[string]interface{}{
			"output_path": prop("string", "Where to write the result (default: cache)"),
		}, "password"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}
			var buf bytes.Buffer
			if err := pageops.Unprotect(&buf, data, stringArg(args, "password")); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, "Decrypted PDF")
		},
	}
}

func (ts *Toolset) addWatermarkTool() Tool {
	return Tool{
		Name:        "add_watermark",
		Description: "Stamp a text watermark (e.g. CONFIDENTIAL, DRAFT) across pages.",
		InputSchema: sourceSchema(map[string]interface{}{
			"text":        prop("string", "Watermark text"),
			"font_size":   prop("number", "Font size in points (default 48)"),
			"gray":        prop("number", "Gray level from 0 black to 1 white (default 0.8)"),
			"diagonal":    prop("boolean", "Rotate the watermark 45 degrees"),
			"pages":       prop("string", "Page range like '1-3,7' (default: all pages)"),
			"output_path": prop("string", "Where to write the result (default: cache)"),
		}, "text"),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			text := stringArg(args, "text")
			if text == "" {
				return ToolResult{}, missingArg("text")
			}
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}

			var pages []int
			if spec := stringArg(args, "pages"); spec != "" {
				doc, err := reader.ReadFrom(bytes.NewReader(data))
				if err != nil {
					return ToolResult{}, err
				}
				pages, err = pageops.ParsePageRange(spec, doc.NumPages())
				if err != nil {
					return ToolResult{}, err
				}
			}

			wm := pageops.TextWatermark{
				Text:     text,
				FontSize: floatArg(args, "font_size", 0),
				Gray:     floatArg(args, "gray", 0),
				Diagonal: boolArg(args, "diagonal", false),
			}

			var buf bytes.Buffer
			if err := pageops.AddTextWatermark(&buf, data, wm, pages); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, fmt.Sprintf("PDF watermarked with %q", text))
		},
	}
}

func (ts *Toolset) addPageNumbersTool() Tool {
	return Tool{
		Name:        "add_page_numbers",
		Description: "Stamp 'n / total' page numbers at the bottom of every page.",
		InputSchema: sourceSchema(map[string]interface{}{
			"output_path": prop("string", "Where to write the result (default: cache)"),
		}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			data, _, err := ts.sourceData(args)
			if err != nil {
				return ToolResult{}, err
			}
			var buf bytes.Buffer
			if err := pageops.AddPageNumbers(&buf, data); err != nil {
				return ToolResult{}, err
			}
			return ts.deliver(args, &buf, "PDF with page numbers")
		},
	}
}

// ---------------------------------------------------------------------------
// Rendering

func (ts *Toolset) convertPageToImageTool() Tool {
	return Tool{
		Name:        "convert_page_to_image",
		Description: "Rasterize one page to a PNG or JPEG image. An approximation: embedded images are placed and scaled, text is drawn in a built-in font.",
		InputSchema: sourceSchema(map[string]interface{}{
			"page":        prop("number", "1-based page number (default 1)"),
			"width":       prop("number", "Output width in pixels (default from config)"),
			"format":      prop("string", "png or jpeg (default png)"),
			"quality":     prop("number", "JPEG quality 1-100"),
			"output_path": prop("string", "Write the image to this path instead of returning it inline"),
		}),
		Handler: ts.handleConvertPageToImage,
	}
}

func (ts *Toolset) handleConvertPageToImage(args map[string]interface{}) (ToolResult, error) {
	doc, _, err := ts.openDocument(args)
	if err != nil {
		return ToolResult{}, err
	}
	page, err := doc.Page(intArg(args, "page", 1))
	if err != nil {
		return ToolResult{}, err
	}

	opts := render.Options{
		Width:    intArg(args, "width", ts.cfg.ImageDefaultWidth),
		MaxWidth: ts.cfg.ImageMaxWidth,
	}

	format := stringArg(args, "format")
	var img []byte
	var mime string
	switch format {
	case "", "png":
		img, err = render.PNG(page, opts)
		mime = "image/png"
	case "jpeg", "jpg":
		img, err = render.JPEG(page, opts, intArg(args, "quality", 0))
		mime = "image/jpeg"
	default:
		return ToolResult{}, fmt.Errorf("%w: unknown image format %q", pdfmcp.ErrInvalidParam, format)
	}
	if err != nil {
		return ToolResult{}, err
	}

	if outputPath := stringArg(args, "output_path"); outputPath != "" {
		resolved, err := source.ValidatePath(outputPath, ts.cfg.ResourceDirs)
		if err != nil {
			return ToolResult{}, err
		}
		if err := os.WriteFile(resolved, img, 0644); err != nil {
			return ToolResult{}, fmt.Errorf("mcp: writing image: %w", err)
		}
		return textResult(fmt.Sprintf("Image written to %s (%d bytes)", outputPath, len(img))), nil
	}

	return ToolResult{Content: []ContentBlock{{
		Type:     "image",
		MIMEType: mime,
		Data:     base64.StdEncoding.EncodeToString(img),
	}}}, nil
}

// ---------------------------------------------------------------------------
// Discovery

func (ts *Toolset) listPDFsTool() Tool {
	return Tool{
		Name:        "list_pdfs",
		Description: "List PDF files in the configured resource directories and documents held in the cache.",
		InputSchema: schema(map[string]interface{}{}),
		Handler: func(args map[string]interface{}) (ToolResult, error) {
			files := make([]map[string]interface{}, 0)
			for _, dir := range ts.cfg.ResourceDirs {
				filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
					if err != nil || d.IsDir() {
						return nil
					}
					if !strings.EqualFold(filepath.Ext(path), ".pdf") {
						return nil
					}
					entry := map[string]interface{}{"path": path}
					if info, err := d.Info(); err == nil {
						entry["size"] = info.Size()
					}
					files = append(files, entry)
					return nil
				})
			}

			cached := make([]map[string]interface{}, 0)
			for _, e := range ts.resolver.Cache().Entries() {
				cached = append(cached, map[string]interface{}{
					"cacheKey": e.Key,
					"name":     e.Name,
					"size":     e.Size,
					"storedAt": e.StoredAt,
				})
			}

			return jsonResult(map[string]interface{}{
				"files":  files,
				"cached": cached,
			})
		},
	}
}
