package reader

// PageInfo summarizes one page's geometry and text statistics.
type PageInfo struct {
	Page            int
	Width           float64
	Height          float64
	Rotation        int
	Orientation     string // "portrait", "landscape", or "square"
	CharCount       int
	EstimatedTokens int
}

// Info returns geometry and text statistics for this page. Text
// extraction failures degrade to zero counts rather than an error, since
// the geometric fields remain useful.
func (p *Page) Info() PageInfo {
	w, h := p.MediaBox.Width(), p.MediaBox.Height()
	if p.Rotate == 90 || p.Rotate == 270 {
		w, h = h, w
	}

	info := PageInfo{
		Page:     p.Number,
		Width:    w,
		Height:   h,
		Rotation: p.Rotate,
	}
	switch {
	case w > h:
		info.Orientation = "landscape"
	case h > w:
		info.Orientation = "portrait"
	default:
		info.Orientation = "square"
	}

	if text, err := p.ExtractText(); err == nil {
		runes := []rune(text)
		info.CharCount = len(runes)
		info.EstimatedTokens = EstimateTokens(text)
	}
	return info
}

// EstimateTokens approximates the LLM token count of a text: CJK
// characters average about 2 tokens each, other scripts about 4
// characters per token.
func EstimateTokens(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	return cjk*2 + other/4
}

// isCJK reports whether a rune falls in the main CJK, kana, or hangul
// blocks.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK Extension A
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana, Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // Hangul Syllables
		return true
	case r >= 0xF900 && r <= 0xFAFF: // CJK Compatibility Ideographs
		return true
	}
	return false
}
