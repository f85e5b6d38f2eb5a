package render

import (
	"fmt"

	"github.com/swdee/go-obbdata"
	"github.com/swdee/go-obbdata/geometry"
	"github.com/swdee/go-obbdata/preprocess"
	"gocv.io/x/gocv"
)

// Decoder turns rows of box parameters back into renderable annotations
type Decoder struct {
	// Mode is the encoding of rotated box rows
	Mode geometry.BoxMode
	// Classes resolves class ids into label text, may be nil
	Classes *obbdata.ClassMap
}

// Rows decodes a row major list of boxes with params values per box.  Rows
// of 6 values are rotated boxes followed by the class id, rows of 9 values
// are quads followed by the class id.  Padding rows are skipped
func (d Decoder) Rows(rows []float32, params int) ([]Annotation, error) {

	if params != obbdata.RotatedParams && params != obbdata.QuadParams {
		return nil, fmt.Errorf("can not render boxes with %d parameters", params)
	}

	if len(rows)%params != 0 {
		return nil, fmt.Errorf("%d values is not a multiple of %d parameters", len(rows), params)
	}

	anns := make([]Annotation, 0, len(rows)/params)

	for off := 0; off < len(rows); off += params {
		row := rows[off : off+params]

		if isPadding(row) {
			continue
		}

		var ann Annotation

		if params == obbdata.RotatedParams {
			var p [5]float32
			copy(p[:], row[:5])
			ann.Quad = geometry.RotatedToQuad(geometry.Decode(p, d.Mode))
		} else {
			copy(ann.Quad[:], row[:8])
		}

		ann.ClassID = int(row[params-1])

		if d.Classes != nil {
			if name, err := d.Classes.Name(ann.ClassID); err == nil {
				ann.Text = name
			}
		}

		anns = append(anns, ann)
	}

	return anns, nil
}

// Sample returns a copy of the sample image with its boxes drawn on it
func (d Decoder) Sample(s *obbdata.Sample, font Font, lineThickness int) (gocv.Mat, error) {

	anns, err := d.Rows(s.Boxes.Data(), s.Boxes.Params())

	if err != nil {
		return gocv.Mat{}, err
	}

	img := s.Image.Clone()
	Annotations(&img, anns, font, lineThickness)

	return img, nil
}

// Batch returns the image of slot idx of a collated batch with its boxes
// drawn on it.  norm must be the normalization the batch was created with
func (d Decoder) Batch(b *obbdata.Batch, idx int, norm preprocess.Normalizer,
	font Font, lineThickness int) (gocv.Mat, error) {

	chw, err := b.ImageAt(idx)

	if err != nil {
		return gocv.Mat{}, err
	}

	img, err := norm.FromCHW(chw, b.Height(), b.Width())

	if err != nil {
		return gocv.Mat{}, err
	}

	rows, err := b.BoxesAt(idx)

	if err != nil {
		img.Close()
		return gocv.Mat{}, err
	}

	anns, err := d.Rows(rows, b.Params())

	if err != nil {
		img.Close()
		return gocv.Mat{}, err
	}

	Annotations(&img, anns, font, lineThickness)

	return img, nil
}

// WriteRGB saves an RGB image to file, the format is chosen by the file
// extension
func WriteRGB(path string, img gocv.Mat) error {

	bgr := gocv.NewMat()
	defer bgr.Close()

	gocv.CvtColor(img, &bgr, gocv.ColorRGBToBGR)

	if !gocv.IMWrite(path, bgr) {
		return fmt.Errorf("error writing image %s", path)
	}

	return nil
}

// isPadding reports if every value of the row is the padding sentinel
func isPadding(row []float32) bool {
	for _, v := range row {
		if v != obbdata.Sentinel {
			return false
		}
	}
	return true
}
