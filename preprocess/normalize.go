package preprocess

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// Normalizer converts a uint8 RGB image into float32 planar data scaled to
// [0,1] then standardized per channel
type Normalizer struct {
	Mean [3]float32
	Std  [3]float32
}

// ImageNetNormalizer returns a Normalizer using the ImageNet channel mean and
// standard deviation
func ImageNetNormalizer() Normalizer {
	return Normalizer{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
}

// ToCHW returns the normalized image reshaped from HWC to CHW order
func (n Normalizer) ToCHW(img gocv.Mat) ([]float32, error) {

	if img.Channels() != 3 {
		return nil, fmt.Errorf("expected 3 channel image, got %d", img.Channels())
	}

	fimg := gocv.NewMat()
	defer fimg.Close()

	img.ConvertToWithParams(&fimg, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	src, err := fimg.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error accessing float32 image data: %w", err)
	}

	h, w := fimg.Rows(), fimg.Cols()
	plane := h * w
	out := make([]float32, 3*plane)

	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			out[c*plane+i] = (src[i*3+c] - n.Mean[c]) / n.Std[c]
		}
	}

	return out, nil
}

// FromCHW reverses ToCHW returning a uint8 RGB image of the given height
// and width
func (n Normalizer) FromCHW(chw []float32, height, width int) (gocv.Mat, error) {

	plane := height * width

	if len(chw) != 3*plane {
		return gocv.Mat{}, fmt.Errorf("expected %d values for %dx%d image, got %d",
			3*plane, width, height, len(chw))
	}

	buf := make([]byte, 3*plane)

	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			v := (chw[c*plane+i]*n.Std[c] + n.Mean[c]) * 255
			buf[i*3+c] = uint8(math.Max(0, math.Min(255, math.Round(float64(v)))))
		}
	}

	wrapped, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("error creating image: %w", err)
	}

	defer wrapped.Close()

	return wrapped.Clone(), nil
}
