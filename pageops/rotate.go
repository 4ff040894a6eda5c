package pageops

import (
	"fmt"
	"io"

	"github.com/lvillar/pdfmcp"
)

// RotatePages writes a copy of the document with the given pages rotated
// clockwise by angle degrees. The angle must be a multiple of 90; it is
// added to any rotation a page already carries. An empty pages list
// rotates every page.
func RotatePages(w io.Writer, data []byte, angle int, pages []int) error {
	if angle%90 != 0 {
		return fmt.Errorf("%w: rotation angle %d is not a multiple of 90", pdfmcp.ErrInvalidParam, angle)
	}

	doc, err := open(data)
	if err != nil {
		return err
	}

	if len(pages) == 0 {
		pages = allPages(doc)
	}

	rotations := make(map[int]int, len(pages))
	for _, n := range pages {
		page, err := doc.Page(n)
		if err != nil {
			return err
		}
		rotations[n] = normalizeAngle(page.Rotate + angle)
	}
	return writePages(w, doc, allPages(doc), rotations)
}

// normalizeAngle maps any multiple of 90 into [0, 360).
func normalizeAngle(angle int) int {
	angle %= 360
	if angle < 0 {
		angle += 360
	}
	return angle
}
