// Package layout reconstructs readable text from positioned glyphs.
//
// PDF content streams report characters in drawing order, which frequently
// differs from reading order: headers and footers interleave with body text,
// multi-column pages alternate between columns, and watermarks overlay
// everything. This package turns a flat set of positioned glyphs into a
// single page string that preserves reading order, paragraph boundaries,
// and two-column layout, while suppressing watermark-like overlays.
//
// The pipeline is pure and runs in a fixed order: threshold estimation,
// line grouping, watermark filtering, column reordering, text building.
// Each stage consumes the previous stage's output and produces a new value;
// pages are independent, so callers may process pages concurrently without
// coordination.
package layout

import "sort"

// Glyph is one rendered character on a page. Coordinates are in PDF user
// space: page points with the origin at the bottom-left corner and y
// increasing upward, so the top of the page has the largest y values.
// Collaborators that report top-down coordinates must flip y against the
// page height before handing glyphs to this package.
type Glyph struct {
	Char   rune
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Member is one glyph's contribution to a Line: its character and
// horizontal position.
type Member struct {
	Char rune
	X    float64
}

// Line is an ordered cluster of glyphs sitting on one visual text line.
// Members are sorted by X ascending. Y is the vertical position of the
// first glyph that opened the line during clustering, AvgHeight is the
// mean glyph height across members, and MinX/MaxX span the horizontal
// extent (MaxX includes the rightmost glyph's width).
type Line struct {
	Members   []Member
	Y         float64
	AvgHeight float64
	MinX      float64
	MaxX      float64
}

// ParagraphMode controls whether blank lines are inserted between lines
// separated by more than the usual vertical gap.
type ParagraphMode int

const (
	ParagraphNone ParagraphMode = iota
	ParagraphSpacing
)

// ColumnMode controls whether two-column pages are re-ordered into a
// single reading stream.
type ColumnMode int

const (
	ColumnNone ColumnMode = iota
	ColumnAuto
)

// WatermarkMode controls whether centered oversized overlay lines are
// removed.
type WatermarkMode int

const (
	WatermarkNone WatermarkMode = iota
	WatermarkCenter
)

// Config holds the per-page layout knobs. The zero value disables every
// heuristic; use DefaultConfig for the recommended settings.
//
// PageWidth and PageHeight must be set for the watermark and column
// heuristics to activate. The numeric constants (thresholds, gap widths)
// are behavioral defaults: changing them changes observable output.
type Config struct {
	ParagraphMode      ParagraphMode
	ParagraphThreshold float64 // line-gap multiplier, default 1.5
	ColumnMode         ColumnMode
	ColumnGap          float64 // minimum separator gap in points, default 30.0
	WatermarkMode      WatermarkMode
	DynamicThresholds  bool
	PageWidth          float64
	PageHeight         float64
}

// DefaultConfig returns the configuration tuned for LLM consumption:
// paragraph breaks, automatic column detection, watermark suppression,
// and font-size-adaptive tolerances all enabled.
func DefaultConfig() Config {
	return Config{
		ParagraphMode:      ParagraphSpacing,
		ParagraphThreshold: 1.5,
		ColumnMode:         ColumnAuto,
		ColumnGap:          30.0,
		WatermarkMode:      WatermarkCenter,
		DynamicThresholds:  true,
	}
}

// Thresholds are the two tolerances driving line grouping and space
// insertion, both in page points.
type Thresholds struct {
	Line  float64 // max vertical distance for two glyphs to share a line
	Space float64 // min horizontal gap between glyphs to insert a space
}

// Fixed fallback tolerances used when dynamic estimation is disabled or
// the page has no usable glyph heights.
var fixedThresholds = Thresholds{Line: 5.0, Space: 10.0}

// ExtractText runs the full pipeline over one page's glyphs and returns
// the reconstructed text. An empty glyph set yields an empty string.
func ExtractText(glyphs []Glyph, cfg Config) string {
	th := EstimateThresholds(glyphs, cfg)
	lines := GroupLines(glyphs, th.Line)
	lines = FilterWatermarks(lines, cfg)
	if cfg.ColumnMode == ColumnAuto {
		lines = ReorderColumns(lines, cfg.ColumnGap)
	}
	return BuildText(lines, th.Space, cfg)
}

// EstimateThresholds derives the line and space tolerances from the glyph
// height distribution. With dynamic thresholds disabled, or no glyphs with
// positive height, it returns the fixed defaults (5.0, 10.0). Otherwise it
// takes the upper median of the positive heights and scales it: 40% for
// the line tolerance (floor 2.0) and 30% for the space tolerance
// (floor 3.0). A fixed tolerance over- or under-merges lines on unusually
// small or large type; scaling by the dominant glyph height adapts while
// the floors prevent collapse on degenerate inputs.
func EstimateThresholds(glyphs []Glyph, cfg Config) Thresholds {
	if !cfg.DynamicThresholds || len(glyphs) == 0 {
		return fixedThresholds
	}

	heights := make([]float64, 0, len(glyphs))
	for _, g := range glyphs {
		if g.Height > 0 {
			heights = append(heights, g.Height)
		}
	}
	if len(heights) == 0 {
		return fixedThresholds
	}

	sort.Float64s(heights)
	median := heights[len(heights)/2]

	return Thresholds{
		Line:  max(2.0, median*0.4),
		Space: max(3.0, median*0.3),
	}
}

// GroupLines clusters glyphs into lines ordered top-to-bottom. Glyphs are
// sorted by y descending (bottom-up page coordinates put the top of the
// page at the largest y) with x ascending as the tie-break, then scanned
// once: a glyph within lineTol of the current line's anchor y joins it,
// anything farther opens a new line. The anchor stays fixed to the first
// glyph of the line so that small per-glyph drift cannot accumulate across
// a long line. Members are finally re-sorted by x, since near-equal y
// values may interleave x order during the clustering sort.
func GroupLines(glyphs []Glyph, lineTol float64) []Line {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []Line
	var current []Glyph
	anchorY := sorted[0].Y

	for _, g := range sorted {
		if len(current) > 0 && abs(g.Y-anchorY) > lineTol {
			lines = append(lines, newLine(current, anchorY))
			current = current[:0:0]
			anchorY = g.Y
		}
		if len(current) == 0 {
			anchorY = g.Y
		}
		current = append(current, g)
	}
	if len(current) > 0 {
		lines = append(lines, newLine(current, anchorY))
	}

	return lines
}

// newLine builds a Line from a cluster of glyphs, computing the member
// list (x-sorted), the height mean, and the horizontal extent.
func newLine(glyphs []Glyph, anchorY float64) Line {
	sort.SliceStable(glyphs, func(i, j int) bool {
		return glyphs[i].X < glyphs[j].X
	})

	line := Line{
		Y:    anchorY,
		MinX: glyphs[0].X,
	}

	var heightSum float64
	for _, g := range glyphs {
		line.Members = append(line.Members, Member{Char: g.Char, X: g.X})
		heightSum += g.Height
		if g.X < line.MinX {
			line.MinX = g.X
		}
		if right := g.X + g.Width; right > line.MaxX {
			line.MaxX = right
		}
	}
	line.AvgHeight = heightSum / float64(len(glyphs))

	return line
}

// FilterWatermarks removes lines that look like watermark overlays:
// horizontally centered within 20% of the page width, set in type more
// than 1.5 times the page's average line height, and shorter than 30
// glyphs. Body text is smaller, denser, and either spans the column width
// or hugs the left margin, so it fails at least one of the three tests.
// No-op unless watermark filtering is enabled and the page width is known.
func FilterWatermarks(lines []Line, cfg Config) []Line {
	if cfg.WatermarkMode != WatermarkCenter || cfg.PageWidth <= 0 {
		return lines
	}

	avgFontHeight := 12.0
	if len(lines) > 0 {
		var sum float64
		for _, l := range lines {
			sum += l.AvgHeight
		}
		avgFontHeight = sum / float64(len(lines))
	}

	center := cfg.PageWidth / 2
	kept := make([]Line, 0, len(lines))
	for _, l := range lines {
		mid := (l.MinX + l.MaxX) / 2
		centered := abs(mid-center) < cfg.PageWidth*0.2
		oversized := l.AvgHeight > avgFontHeight*1.5
		short := len(l.Members) < 30

		if centered && oversized && short {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// ReorderColumns detects a two-column layout and re-orders lines so the
// whole left column precedes the whole right column, each read
// top-to-bottom. It collects every member x position, finds consecutive
// gaps of at least columnGap, and buckets their midpoints to 10-point
// buckets: a true column separator recurs at a stable position across many
// lines, so the bucket with the most hits marks it (a one-off wide
// inter-word space does not repeat). Lines are partitioned by their
// horizontal midpoint against the winning bucket's lower bound. With no
// candidate gap, or fewer than two x positions, lines pass through
// unchanged. Three-or-more-column layouts degrade to a two-way split at
// the most frequent gap.
func ReorderColumns(lines []Line, columnGap float64) []Line {
	var xs []float64
	for _, l := range lines {
		for _, m := range l.Members {
			xs = append(xs, m.X)
		}
	}
	if len(xs) < 2 {
		return lines
	}
	sort.Float64s(xs)

	type bucketStat struct {
		width float64
		count int
	}
	buckets := make(map[int]bucketStat)
	order := make([]int, 0, 8) // first-seen order breaks count ties

	for i := 1; i < len(xs); i++ {
		gap := xs[i] - xs[i-1]
		if gap < columnGap {
			continue
		}
		mid := (xs[i-1] + xs[i]) / 2
		bucket := int(mid/10) * 10
		stat, seen := buckets[bucket]
		if !seen {
			order = append(order, bucket)
		}
		stat.width += gap
		stat.count++
		buckets[bucket] = stat
	}
	if len(buckets) == 0 {
		return lines
	}

	best := order[0]
	for _, b := range order[1:] {
		if buckets[b].count > buckets[best].count {
			best = b
		}
	}
	separator := float64(best)

	var left, right []Line
	for _, l := range lines {
		if (l.MinX+l.MaxX)/2 < separator {
			left = append(left, l)
		} else {
			right = append(right, l)
		}
	}
	return append(left, right...)
}

// BuildText serializes the final ordered lines into one page string.
// Within a line, a space is inserted before a member whose horizontal gap
// to its predecessor exceeds spaceTol, unless the member is itself a space
// (avoiding doubled spaces). Between lines, when paragraph spacing is
// enabled, a blank line is emitted whenever the vertical gap to the
// previous line exceeds the larger of the two lines' average heights times
// the paragraph threshold. Trailing whitespace is trimmed; zero lines
// yield the empty string.
func BuildText(lines []Line, spaceTol float64, cfg Config) string {
	var out []rune
	var prevY, prevAvgHeight float64
	havePrev := false

	for _, line := range lines {
		if cfg.ParagraphMode == ParagraphSpacing && havePrev {
			lineGap := prevY - line.Y
			normalGap := max(prevAvgHeight, line.AvgHeight)
			if lineGap > normalGap*cfg.ParagraphThreshold {
				out = append(out, '\n')
			}
		}

		prevX := 0.0
		for i, m := range line.Members {
			if i > 0 && m.X-prevX > spaceTol && m.Char != ' ' {
				out = append(out, ' ')
			}
			out = append(out, m.Char)
			prevX = m.X
		}
		out = append(out, '\n')

		prevY = line.Y
		prevAvgHeight = line.AvgHeight
		havePrev = true
	}

	// Trim trailing whitespace at the end of the page.
	end := len(out)
	for end > 0 && (out[end-1] == '\n' || out[end-1] == ' ' || out[end-1] == '\t' || out[end-1] == '\r') {
		end--
	}
	return string(out[:end])
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
