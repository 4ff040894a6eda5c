package reader

import (
	"math"

	"github.com/lvillar/pdfmcp/layout"
)

// textMatrix is a PDF transformation matrix [a b c d e f].
type textMatrix [6]float64

var identityMatrix = textMatrix{1, 0, 0, 1, 0, 0}

// mul returns m × n (PDF row-vector convention: points transform as p·m).
func (m textMatrix) mul(n textMatrix) textMatrix {
	return textMatrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func translation(tx, ty float64) textMatrix {
	return textMatrix{1, 0, 0, 1, tx, ty}
}

// textState tracks the PDF text-state parameters that affect glyph
// placement. Font metrics are not loaded; advances are estimated from the
// font size, which is accurate enough for the layout heuristics that
// consume the glyphs.
type textState struct {
	fontSize    float64
	leading     float64
	charSpacing float64
	wordSpacing float64
	horizScale  float64 // Tz value / 100
	tm          textMatrix
	tlm         textMatrix
}

// estimated advance of one glyph, as a fraction of the font size. Real
// widths come from the font's /Widths array, which is not consulted here.
// The estimate is kept below the layout engine's space tolerance (30% of
// the glyph height) so that characters inside one shown string never read
// as separate words; true word gaps come from space characters or from
// repositioning operators, which carry real coordinates.
const avgGlyphAdvance = 0.25

// Glyphs interprets the page's content stream and returns one positioned
// glyph per shown character, in drawing order. Coordinates are PDF user
// space (origin bottom-left, y up). Use the layout package to reconstruct
// reading order from the result.
//
// The interpreter covers the standard text operators (BT/ET, Tf, Tc, Tw,
// Tz, TL, Td, TD, Tm, T*, Tj, TJ, ', "). Characters from CIDFonts without
// a ToUnicode CMap may decode incorrectly, matching the limits of the
// string decoder used for metadata.
func (p *Page) Glyphs() ([]layout.Glyph, error) {
	data, err := p.ContentStream()
	if err != nil {
		return nil, err
	}
	return collectGlyphs(data), nil
}

// collectGlyphs runs the text-state machine over raw content-stream bytes.
func collectGlyphs(data []byte) []layout.Glyph {
	var glyphs []layout.Glyph
	st := textState{horizScale: 1, tm: identityMatrix, tlm: identityMatrix}

	// Operands accumulate until an operator consumes them.
	var nums []float64
	var strs [][]byte
	var tjArray []tjItem
	clear := func() {
		nums = nums[:0]
		strs = strs[:0]
		tjArray = nil
	}

	i := 0
	for i < len(data) {
		for i < len(data) && isWhitespace(data[i]) {
			i++
		}
		if i >= len(data) {
			break
		}

		switch b := data[i]; {
		case b == '(':
			s, end := parseLiteralStringRaw(data, i)
			strs = append(strs, s)
			i = end

		case b == '<' && i+1 < len(data) && data[i+1] == '<':
			i = skipInlineDict(data, i)
			clear()

		case b == '<':
			s, end := parseHexStringRaw(data, i)
			strs = append(strs, s)
			i = end

		case b == '[':
			var end int
			tjArray, end = parseTJArray(data, i)
			i = end

		case b == '/':
			// Name operand (font resource in Tf); the name itself is unused.
			i++
			for i < len(data) && !isWhitespace(data[i]) && !isDelimiter(data[i]) {
				i++
			}

		case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
			v, end := scanNumber(data, i)
			nums = append(nums, v)
			i = end

		default:
			op, end := scanOperator(data, i)
			i = end
			glyphs = applyOperator(op, &st, nums, strs, tjArray, glyphs)
			clear()
		}
	}

	return glyphs
}

type tjItem struct {
	text   []byte
	adjust float64
	isText bool
}

// applyOperator updates the text state for one operator and appends any
// shown glyphs.
func applyOperator(op string, st *textState, nums []float64, strs [][]byte, tj []tjItem, glyphs []layout.Glyph) []layout.Glyph {
	switch op {
	case "BT":
		st.tm = identityMatrix
		st.tlm = identityMatrix
	case "ET":
		// text object closed; state outside BT/ET is irrelevant here
	case "Tf":
		if len(nums) >= 1 {
			st.fontSize = nums[len(nums)-1]
		}
	case "Tc":
		if len(nums) >= 1 {
			st.charSpacing = nums[len(nums)-1]
		}
	case "Tw":
		if len(nums) >= 1 {
			st.wordSpacing = nums[len(nums)-1]
		}
	case "Tz":
		if len(nums) >= 1 {
			st.horizScale = nums[len(nums)-1] / 100
		}
	case "TL":
		if len(nums) >= 1 {
			st.leading = nums[len(nums)-1]
		}
	case "Td":
		if len(nums) >= 2 {
			st.moveLine(nums[len(nums)-2], nums[len(nums)-1])
		}
	case "TD":
		if len(nums) >= 2 {
			st.leading = -nums[len(nums)-1]
			st.moveLine(nums[len(nums)-2], nums[len(nums)-1])
		}
	case "Tm":
		if len(nums) >= 6 {
			n := nums[len(nums)-6:]
			st.tlm = textMatrix{n[0], n[1], n[2], n[3], n[4], n[5]}
			st.tm = st.tlm
		}
	case "T*":
		st.moveLine(0, -st.leading)
	case "Tj":
		if len(strs) >= 1 {
			glyphs = st.show(strs[len(strs)-1], glyphs)
		}
	case "TJ":
		for _, item := range tj {
			if item.isText {
				glyphs = st.show(item.text, glyphs)
			} else {
				st.adjust(item.adjust)
			}
		}
	case "'":
		st.moveLine(0, -st.leading)
		if len(strs) >= 1 {
			glyphs = st.show(strs[len(strs)-1], glyphs)
		}
	case "\"":
		if len(nums) >= 2 {
			st.wordSpacing = nums[len(nums)-2]
			st.charSpacing = nums[len(nums)-1]
		}
		st.moveLine(0, -st.leading)
		if len(strs) >= 1 {
			glyphs = st.show(strs[len(strs)-1], glyphs)
		}
	}
	return glyphs
}

// moveLine implements Td: translate the line matrix and reset tm to it.
func (st *textState) moveLine(tx, ty float64) {
	st.tlm = translation(tx, ty).mul(st.tlm)
	st.tm = st.tlm
}

// adjust applies a TJ numeric adjustment (thousandths of text space,
// positive values move left).
func (st *textState) adjust(amount float64) {
	d := -amount / 1000 * st.fontSize * st.horizScale
	st.advance(d)
}

// advance moves the text matrix along its baseline direction.
func (st *textState) advance(d float64) {
	st.tm[4] += d * st.tm[0]
	st.tm[5] += d * st.tm[1]
}

// show emits one glyph per decoded character of a shown string.
func (st *textState) show(raw []byte, glyphs []layout.Glyph) []layout.Glyph {
	size := st.fontSize
	if size <= 0 {
		size = 12 // Tf never seen; assume a common body size
	}

	hScale := math.Hypot(st.tm[0], st.tm[1])
	vScale := math.Hypot(st.tm[2], st.tm[3])
	height := size * vScale
	width := size * avgGlyphAdvance * st.horizScale * hScale

	for _, r := range decodePDFString(raw) {
		glyphs = append(glyphs, layout.Glyph{
			Char:   r,
			X:      st.tm[4],
			Y:      st.tm[5],
			Width:  width,
			Height: height,
		})

		adv := size*avgGlyphAdvance*st.horizScale + st.charSpacing
		if r == ' ' {
			adv += st.wordSpacing
		}
		st.advance(adv)
	}
	return glyphs
}

// parseTJArray parses a TJ operand array of strings and adjustments.
func parseTJArray(data []byte, pos int) ([]tjItem, int) {
	var items []tjItem
	pos++ // skip '['
	for pos < len(data) && data[pos] != ']' {
		b := data[pos]
		switch {
		case isWhitespace(b):
			pos++
		case b == '(':
			s, end := parseLiteralStringRaw(data, pos)
			items = append(items, tjItem{text: s, isText: true})
			pos = end
		case b == '<':
			s, end := parseHexStringRaw(data, pos)
			items = append(items, tjItem{text: s, isText: true})
			pos = end
		case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
			v, end := scanNumber(data, pos)
			items = append(items, tjItem{adjust: v})
			pos = end
		default:
			pos++
		}
	}
	if pos < len(data) {
		pos++ // skip ']'
	}
	return items, pos
}

// scanNumber reads a numeric literal starting at pos.
func scanNumber(data []byte, pos int) (float64, int) {
	start := pos
	if pos < len(data) && (data[pos] == '+' || data[pos] == '-') {
		pos++
	}
	for pos < len(data) && ((data[pos] >= '0' && data[pos] <= '9') || data[pos] == '.') {
		pos++
	}
	v := parseFloat(data[start:pos])
	return v, pos
}

// scanOperator reads an operator token starting at pos.
func scanOperator(data []byte, pos int) (string, int) {
	start := pos
	for pos < len(data) && !isWhitespace(data[pos]) && !isDelimiter(data[pos]) {
		pos++
	}
	if pos == start {
		// Lone delimiter (e.g. stray ')' or ']'); skip it.
		return "", pos + 1
	}
	return string(data[start:pos]), pos
}

// skipInlineDict advances past a << ... >> dictionary (e.g. BDC operands).
func skipInlineDict(data []byte, pos int) int {
	depth := 0
	for pos < len(data)-1 {
		if data[pos] == '<' && data[pos+1] == '<' {
			depth++
			pos += 2
			continue
		}
		if data[pos] == '>' && data[pos+1] == '>' {
			depth--
			pos += 2
			if depth == 0 {
				return pos
			}
			continue
		}
		if data[pos] == '(' {
			pos = skipLiteralString(data, pos)
			continue
		}
		pos++
	}
	return len(data)
}

// parseFloat is a minimal float parser for content-stream numerics.
func parseFloat(b []byte) float64 {
	var v, frac float64
	var fracDiv float64 = 1
	neg := false
	inFrac := false
	for _, c := range b {
		switch {
		case c == '-':
			neg = true
		case c == '+':
		case c == '.':
			inFrac = true
		case c >= '0' && c <= '9':
			if inFrac {
				fracDiv *= 10
				frac = frac + float64(c-'0')/fracDiv
			} else {
				v = v*10 + float64(c-'0')
			}
		}
	}
	v += frac
	if neg {
		v = -v
	}
	return v
}
