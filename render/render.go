// Package render rasterizes PDF pages into raster images for preview
// purposes. It paints embedded images at their transformed positions and
// overlays extracted text with a bitmap font, which is a deliberate
// approximation: the output shows where content sits on the page, not a
// print-faithful rendering.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lvillar/pdfmcp"
	"github.com/lvillar/pdfmcp/reader"
)

// Options bounds the output size. Width 0 selects DefaultWidth; requests
// beyond MaxWidth are clamped.
type Options struct {
	Width    int
	MaxWidth int
}

func (o Options) effectiveWidth() int {
	w := o.Width
	if w <= 0 {
		w = pdfmcp.DefaultImageDefaultWidth
	}
	max := o.MaxWidth
	if max <= 0 {
		max = pdfmcp.DefaultImageMaxWidth
	}
	if w > max {
		w = max
	}
	return w
}

// Page rasterizes one page onto a white canvas of the requested width,
// preserving the page's aspect ratio.
func Page(p *reader.Page, opts Options) (*image.RGBA, error) {
	pageW := p.MediaBox.Width()
	pageH := p.MediaBox.Height()
	if pageW <= 0 || pageH <= 0 {
		return nil, fmt.Errorf("render: page %d has a degenerate MediaBox", p.Number)
	}

	width := opts.effectiveWidth()
	scale := float64(width) / pageW
	height := int(math.Round(pageH * scale))
	if height < 1 {
		height = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	if err := drawImages(canvas, p, scale); err != nil {
		return nil, err
	}
	if err := drawText(canvas, p, scale); err != nil {
		return nil, err
	}
	return canvas, nil
}

// PNG renders a page and encodes it as PNG.
func PNG(p *reader.Page, opts Options) ([]byte, error) {
	img, err := Page(p, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEG renders a page and encodes it as JPEG at the given quality
// (1-100, 0 selects the encoder default).
func JPEG(p *reader.Page, opts Options, quality int) ([]byte, error) {
	img, err := Page(p, opts)
	if err != nil {
		return nil, err
	}
	var jopts *jpeg.Options
	if quality > 0 {
		if quality > 100 {
			quality = 100
		}
		jopts = &jpeg.Options{Quality: quality}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, jopts); err != nil {
		return nil, fmt.Errorf("render: encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// drawImages paints each XObject image at the axis-aligned bounding box of
// its current transformation matrix when drawn.
func drawImages(canvas *image.RGBA, p *reader.Page, scale float64) error {
	images, err := p.Images()
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}

	decoded := make(map[string]image.Image, len(images))
	for _, im := range images {
		img, _, err := image.Decode(bytes.NewReader(im.Data))
		if err != nil {
			continue // unsupported encoding; leave a blank area
		}
		decoded[im.Name] = img
	}

	content, err := p.ContentStream()
	if err != nil {
		return err
	}

	pageH := p.MediaBox.Height()
	for _, pl := range imagePlacements(content) {
		img, ok := decoded[pl.name]
		if !ok {
			continue
		}

		// The image fills the unit square mapped through the CTM.
		x0, y0 := pl.ctm.apply(0, 0)
		x1, y1 := pl.ctm.apply(1, 1)
		left := int(math.Round(math.Min(x0, x1) * scale))
		right := int(math.Round(math.Max(x0, x1) * scale))
		top := int(math.Round((pageH - math.Max(y0, y1)) * scale))
		bottom := int(math.Round((pageH - math.Min(y0, y1)) * scale))
		rect := image.Rect(left, top, right, bottom)
		if rect.Empty() {
			continue
		}

		xdraw.ApproxBiLinear.Scale(canvas, rect, img, img.Bounds(), xdraw.Over, nil)
	}
	return nil
}

// drawText overlays the page's glyphs with a fixed bitmap font at their
// scaled baseline positions.
func drawText(canvas *image.RGBA, p *reader.Page, scale float64) error {
	glyphs, err := p.Glyphs()
	if err != nil {
		return err
	}

	pageH := p.MediaBox.Height()
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for _, g := range glyphs {
		drawer.Dot = fixed.P(
			int(math.Round(g.X*scale)),
			int(math.Round((pageH-g.Y)*scale)),
		)
		drawer.DrawString(string(g.Char))
	}
	return nil
}

// matrix is an affine transform in PDF order [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

type placement struct {
	name string
	ctm  matrix
}

// imagePlacements interprets the graphics-state operators of a content
// stream far enough to know the CTM in effect at each Do operator.
func imagePlacements(content []byte) []placement {
	var (
		placements []placement
		stack      []matrix
		ctm        = identity
		nums       []float64
		lastName   string
	)

	pos := 0
	for pos < len(content) {
		b := content[pos]
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f' || b == 0:
			pos++
		case b == '%':
			for pos < len(content) && content[pos] != '\n' {
				pos++
			}
		case b == '(':
			pos = skipString(content, pos)
		case b == '<' && pos+1 < len(content) && content[pos+1] == '<':
			pos += 2
		case b == '<':
			for pos < len(content) && content[pos] != '>' {
				pos++
			}
			pos++
		case b == '[' || b == ']' || b == '{' || b == '}' || (b == '>' && pos+1 < len(content) && content[pos+1] == '>'):
			if b == '>' {
				pos += 2
			} else {
				pos++
			}
		case b == '/':
			start := pos + 1
			pos = start
			for pos < len(content) && !isDelim(content[pos]) {
				pos++
			}
			lastName = string(content[start:pos])
		case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
			start := pos
			pos++
			for pos < len(content) && (content[pos] == '.' || content[pos] == '-' ||
				(content[pos] >= '0' && content[pos] <= '9')) {
				pos++
			}
			var f float64
			fmt.Sscanf(string(content[start:pos]), "%g", &f)
			nums = append(nums, f)
		default:
			start := pos
			for pos < len(content) && !isDelim(content[pos]) {
				pos++
			}
			switch string(content[start:pos]) {
			case "q":
				stack = append(stack, ctm)
			case "Q":
				if n := len(stack); n > 0 {
					ctm = stack[n-1]
					stack = stack[:n-1]
				}
			case "cm":
				if len(nums) >= 6 {
					n := nums[len(nums)-6:]
					ctm = matrix{n[0], n[1], n[2], n[3], n[4], n[5]}.mul(ctm)
				}
			case "Do":
				if lastName != "" {
					placements = append(placements, placement{name: lastName, ctm: ctm})
				}
			}
			nums = nums[:0]
		}
	}
	return placements
}

func skipString(data []byte, pos int) int {
	depth := 0
	for ; pos < len(data); pos++ {
		switch data[pos] {
		case '\\':
			pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return pos + 1
			}
		}
	}
	return pos
}

func isDelim(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
