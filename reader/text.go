package reader

import (
	"bytes"
	"strings"
	"unicode/utf16"

	"github.com/lvillar/pdfmcp/layout"
)

// ExtractText extracts the text content from this page using the default
// layout configuration: paragraph breaks, two-column detection, and
// watermark suppression enabled.
//
// Note: character decoding handles common cases. Complex text with custom
// encodings, CIDFonts, or ToUnicode CMaps may not be fully supported.
func (p *Page) ExtractText() (string, error) {
	return p.ExtractTextWithConfig(layout.DefaultConfig())
}

// ExtractTextWithConfig extracts the page text with explicit layout
// settings. The page dimensions are filled into the config from the
// MediaBox when not already set, so the watermark and column heuristics
// can activate.
func (p *Page) ExtractTextWithConfig(cfg layout.Config) (string, error) {
	glyphs, err := p.Glyphs()
	if err != nil {
		return "", err
	}
	if cfg.PageWidth == 0 {
		cfg.PageWidth = p.MediaBox.Width()
	}
	if cfg.PageHeight == 0 {
		cfg.PageHeight = p.MediaBox.Height()
	}
	return layout.ExtractText(glyphs, cfg), nil
}

// parseLiteralStringRaw extracts raw bytes from a literal string starting at pos.
// Returns the bytes and the position after the closing ')'.
func parseLiteralStringRaw(data []byte, pos int) ([]byte, int) {
	if pos >= len(data) || data[pos] != '(' {
		return nil, pos
	}
	pos++ // skip '('

	var buf bytes.Buffer
	depth := 1

	for pos < len(data) && depth > 0 {
		b := data[pos]
		pos++
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			if pos < len(data) {
				esc := data[pos]
				pos++
				switch esc {
				case 'n':
					buf.WriteByte('\n')
				case 'r':
					buf.WriteByte('\r')
				case 't':
					buf.WriteByte('\t')
				case 'b':
					buf.WriteByte('\b')
				case 'f':
					buf.WriteByte('\f')
				case '(', ')', '\\':
					buf.WriteByte(esc)
				default:
					if esc >= '0' && esc <= '7' {
						oct := int(esc - '0')
						for j := 0; j < 2 && pos < len(data) && data[pos] >= '0' && data[pos] <= '7'; j++ {
							oct = oct*8 + int(data[pos]-'0')
							pos++
						}
						buf.WriteByte(byte(oct))
					} else {
						buf.WriteByte(esc)
					}
				}
			}
		default:
			buf.WriteByte(b)
		}
	}
	return buf.Bytes(), pos
}

// parseHexStringRaw extracts raw bytes from a hex string starting at pos.
func parseHexStringRaw(data []byte, pos int) ([]byte, int) {
	if pos >= len(data) || data[pos] != '<' {
		return nil, pos
	}
	pos++ // skip '<'

	var buf bytes.Buffer
	hi := -1

	for pos < len(data) {
		b := data[pos]
		pos++
		if b == '>' {
			if hi >= 0 {
				buf.WriteByte(byte(hi << 4))
			}
			return buf.Bytes(), pos
		}
		if isWhitespace(b) {
			continue
		}
		v := unhex(b)
		if v < 0 {
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			buf.WriteByte(byte(hi<<4 | v))
			hi = -1
		}
	}
	return buf.Bytes(), pos
}

// decodePDFString attempts to decode a PDF string to a Go string.
// Handles UTF-16BE BOM and falls back to Latin-1.
func decodePDFString(data []byte) string {
	// Check for UTF-16BE BOM
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	// Assume PDFDocEncoding (similar to Latin-1 for printable chars)
	var buf strings.Builder
	for _, b := range data {
		buf.WriteRune(rune(b))
	}
	return buf.String()
}

// decodeUTF16BE decodes UTF-16BE encoded bytes to a Go string.
func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = append(data, 0) // pad
	}
	u16s := make([]uint16, len(data)/2)
	for i := range u16s {
		u16s[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(u16s))
}

// skipLiteralString advances past a literal string at pos.
func skipLiteralString(data []byte, pos int) int {
	if pos >= len(data) || data[pos] != '(' {
		return pos + 1
	}
	pos++
	depth := 1
	for pos < len(data) && depth > 0 {
		switch data[pos] {
		case '(':
			depth++
		case ')':
			depth--
		case '\\':
			pos++ // skip escaped character
		}
		pos++
	}
	return pos
}
