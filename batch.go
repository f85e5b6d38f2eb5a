package obbdata

import (
	"fmt"
)

// Batch defines a struct holding a collated set of samples padded into
// fixed shape tensors ready for a training step
type Batch struct {
	// images is the [batchSize, channels, height, width] image tensor, padded
	// areas are zero
	images *Tensor
	// boxes is the [batchSize, maxBoxes, params] box tensor, padded slots
	// are set to Sentinel
	boxes *Tensor
	// size of the batch
	size int
	// height is the padded image height
	height int
	// width is the padded image width
	width int
	// channels is the number of image channels
	channels int
	// maxBoxes is the largest box count of any sample in the batch
	maxBoxes int
	// params is the number of parameters per box
	params int
	// Paths are the source image paths of each sample
	Paths []string
	// Scales are the x and y resize factors applied to each sample
	Scales [][2]float32
	// TargetSize is the scale the batch was resized to
	TargetSize int
}

// NewBatch allocates a batch for the given dimensions
func NewBatch(batchSize, height, width, channels, maxBoxes, params int) *Batch {
	return &Batch{
		images:   NewTensor([]int{batchSize, channels, height, width}, 0),
		boxes:    NewTensor([]int{batchSize, maxBoxes, params}, Sentinel),
		size:     batchSize,
		height:   height,
		width:    width,
		channels: channels,
		maxBoxes: maxBoxes,
		params:   params,
		Paths:    make([]string, batchSize),
		Scales:   make([][2]float32, batchSize),
	}
}

// AddImageAt writes a CHW image of height h and width w into the top left
// region of slot idx.  The remaining area of the slot is left as zero padding
func (b *Batch) AddImageAt(idx int, chw []float32, h, w int) error {

	if idx < 0 || idx >= b.size {
		return fmt.Errorf("index %d out of range [0-%d)", idx, b.size)
	}

	if h > b.height || w > b.width {
		return fmt.Errorf("image %dx%d larger than batch %dx%d", w, h, b.width, b.height)
	}

	if len(chw) != b.channels*h*w {
		return fmt.Errorf("image does not match batch shape")
	}

	dst, err := b.images.Sub(idx)

	if err != nil {
		return err
	}

	for c := 0; c < b.channels; c++ {
		for y := 0; y < h; y++ {
			src := chw[(c*h+y)*w : (c*h+y+1)*w]
			offset := (c*b.height + y) * b.width
			copy(dst[offset:offset+w], src)
		}
	}

	return nil
}

// AddBoxesAt writes the boxes into the first rows of slot idx, the
// remaining rows keep the Sentinel value
func (b *Batch) AddBoxesAt(idx int, boxes *Boxes) error {

	if idx < 0 || idx >= b.size {
		return fmt.Errorf("index %d out of range [0-%d)", idx, b.size)
	}

	if boxes.Params() != b.params {
		return &ShapeMismatchError{Index: idx, Want: b.params, Got: boxes.Params()}
	}

	if boxes.Len() > b.maxBoxes {
		return fmt.Errorf("%d boxes exceed batch capacity of %d", boxes.Len(), b.maxBoxes)
	}

	dst, err := b.boxes.Sub(idx)

	if err != nil {
		return err
	}

	copy(dst, boxes.Data())
	return nil
}

// Images returns the [batchSize, channels, height, width] image tensor
func (b *Batch) Images() *Tensor {
	return b.images
}

// Boxes returns the [batchSize, maxBoxes, params] box tensor
func (b *Batch) Boxes() *Tensor {
	return b.boxes
}

// ImageAt returns the padded image data of sample idx. idx starts counting
// from 0 to (batchsize-1)
func (b *Batch) ImageAt(idx int) ([]float32, error) {
	return b.images.Sub(idx)
}

// BoxesAt returns the padded box rows of sample idx
func (b *Batch) BoxesAt(idx int) ([]float32, error) {
	return b.boxes.Sub(idx)
}

// BoxCount returns the number of non padded boxes of sample idx
func (b *Batch) BoxCount(idx int) (int, error) {

	rows, err := b.boxes.Sub(idx)

	if err != nil {
		return 0, err
	}

	count := 0

	for r := 0; r < b.maxBoxes; r++ {
		if !isSentinelRow(rows[r*b.params : (r+1)*b.params]) {
			count++
		}
	}

	return count, nil
}

// Size returns the number of samples in the batch
func (b *Batch) Size() int {
	return b.size
}

// Height returns the padded image height
func (b *Batch) Height() int {
	return b.height
}

// Width returns the padded image width
func (b *Batch) Width() int {
	return b.width
}

// MaxBoxes returns the box capacity per sample
func (b *Batch) MaxBoxes() int {
	return b.maxBoxes
}

// Params returns the number of parameters per box
func (b *Batch) Params() int {
	return b.params
}

// isSentinelRow reports if every value of the row is the padding sentinel
func isSentinelRow(row []float32) bool {
	for _, v := range row {
		if v != Sentinel {
			return false
		}
	}
	return true
}
