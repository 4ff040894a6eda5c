package reader

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Image is one image XObject extracted from a page. Data holds encoded
// bytes ready to serve: JPEG streams pass through unchanged, raw
// Flate-compressed samples are re-encoded as PNG.
type Image struct {
	Name     string // resource name in the page's XObject dictionary
	Width    int
	Height   int
	Data     []byte
	MIMEType string
}

// Images extracts the image XObjects referenced by this page's resources.
// Unsupported encodings (CCITT, JBIG2, JPX, unusual color spaces) are
// skipped rather than reported as errors.
func (p *Page) Images() ([]Image, error) {
	if p.Resources == nil {
		return nil, nil
	}

	xobjObj, ok := p.Resources["XObject"]
	if !ok {
		return nil, nil
	}
	resolved, err := p.doc.resolveIfRef(xobjObj)
	if err != nil {
		return nil, err
	}
	xobjects, ok := resolved.(Dict)
	if !ok {
		return nil, nil
	}

	var images []Image
	for name, entry := range xobjects {
		streamObj, err := p.doc.resolveIfRef(entry)
		if err != nil {
			continue
		}
		stream, ok := streamObj.(Stream)
		if !ok || stream.Dict.GetName("Subtype") != "Image" {
			continue
		}

		img, err := decodeImageStream(stream)
		if err != nil {
			continue
		}
		img.Name = string(name)
		images = append(images, img)
	}
	return images, nil
}

// decodeImageStream converts an image XObject stream into servable bytes.
func decodeImageStream(s Stream) (Image, error) {
	w, _ := s.Dict.GetInt("Width")
	h, _ := s.Dict.GetInt("Height")
	img := Image{Width: int(w), Height: int(h)}
	if img.Width <= 0 || img.Height <= 0 {
		return img, fmt.Errorf("reader: image has no dimensions")
	}

	if hasFilter(s.Dict, "DCTDecode") {
		img.Data = s.Data
		img.MIMEType = "image/jpeg"
		return img, nil
	}

	// Raw or Flate-compressed samples: rebuild as PNG.
	data, err := decodeStream(s)
	if err != nil {
		return img, err
	}

	bpc, _ := s.Dict.GetInt("BitsPerComponent")
	if bpc == 0 {
		bpc = 8
	}
	if bpc != 8 {
		return img, fmt.Errorf("reader: unsupported bits per component %d", bpc)
	}

	var m image.Image
	switch s.Dict.GetName("ColorSpace") {
	case "DeviceGray":
		if len(data) < img.Width*img.Height {
			return img, fmt.Errorf("reader: truncated gray image data")
		}
		gray := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
		copy(gray.Pix, data)
		m = gray
	case "DeviceRGB":
		if len(data) < img.Width*img.Height*3 {
			return img, fmt.Errorf("reader: truncated rgb image data")
		}
		rgba := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
		for i := 0; i < img.Width*img.Height; i++ {
			rgba.Pix[i*4] = data[i*3]
			rgba.Pix[i*4+1] = data[i*3+1]
			rgba.Pix[i*4+2] = data[i*3+2]
			rgba.Pix[i*4+3] = 0xFF
		}
		m = rgba
	default:
		return img, fmt.Errorf("reader: unsupported color space %q", s.Dict.GetName("ColorSpace"))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return img, fmt.Errorf("reader: encoding png: %w", err)
	}
	img.Data = buf.Bytes()
	img.MIMEType = "image/png"
	return img, nil
}

// hasFilter reports whether the stream's /Filter entry names the given
// filter, directly or inside a filter array.
func hasFilter(d Dict, name Name) bool {
	switch f := d["Filter"].(type) {
	case Name:
		return f == name
	case Array:
		for _, item := range f {
			if n, ok := item.(Name); ok && n == name {
				return true
			}
		}
	}
	return false
}
