package reader

import (
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// SearchMatch is one occurrence of a search query within the document.
type SearchMatch struct {
	Page     int    // 1-based page number
	Position int    // byte offset of the match within the page text
	Context  string // surrounding text
}

// Search finds occurrences of query in the document's extracted text,
// page by page. Case-insensitive matching folds case per Unicode rules,
// so it behaves correctly beyond ASCII. Scanning stops once maxResults
// matches are collected (0 means unlimited); contextChars of text are
// included on each side of every match.
//
// The returned total counts only collected matches, so it saturates at
// maxResults.
func (d *Document) Search(query string, caseSensitive bool, maxResults, contextChars int) ([]SearchMatch, error) {
	var opts []search.Option
	if !caseSensitive {
		opts = append(opts, search.IgnoreCase)
	}
	matcher := search.New(language.Und, opts...)
	pattern := matcher.CompileString(query)

	var matches []SearchMatch
	for pageNum, page := range d.Pages() {
		text, err := page.ExtractText()
		if err != nil {
			continue
		}

		offset := 0
		for offset < len(text) {
			start, end := pattern.IndexString(text[offset:])
			if start < 0 {
				break
			}
			absStart := offset + start
			absEnd := offset + end

			ctxStart := absStart - contextChars
			if ctxStart < 0 {
				ctxStart = 0
			}
			for ctxStart > 0 && !utf8.RuneStart(text[ctxStart]) {
				ctxStart--
			}
			ctxEnd := absEnd + contextChars
			if ctxEnd > len(text) {
				ctxEnd = len(text)
			}
			for ctxEnd < len(text) && !utf8.RuneStart(text[ctxEnd]) {
				ctxEnd++
			}

			matches = append(matches, SearchMatch{
				Page:     pageNum,
				Position: absStart,
				Context:  text[ctxStart:ctxEnd],
			})
			if maxResults > 0 && len(matches) >= maxResults {
				return matches, nil
			}

			if absEnd > offset {
				offset = absEnd
			} else {
				offset++
			}
		}
	}
	return matches, nil
}
