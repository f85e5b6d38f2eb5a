package obbdata

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/annotation"
	"github.com/swdee/go-obbdata/augment"
	"github.com/swdee/go-obbdata/geometry"
	"gocv.io/x/gocv"
	"k8s.io/klog/v2"
)

// labelDir is the directory holding label files, it sits next to the
// directory of images
const labelDir = "labelTxt"

// Dataset provides training samples from a DOTA style dataset.  It holds no
// mutable state after creation so Sample may be called concurrently for
// different indices
type Dataset struct {
	images    []string
	classes   *ClassMap
	parser    *annotation.Parser
	augmenter augment.Augmenter
	filter    geometry.FilterParams
	mode      geometry.BoxMode
	seed      uint64
}

// NewDataset creates a Dataset from the images listed in the configured
// image set file
func NewDataset(cfg Config) (*Dataset, error) {

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}

	images, err := LoadImageSet(cfg.ImageSet)

	if err != nil {
		return nil, err
	}

	return NewDatasetFromImages(images, cfg)
}

// NewDatasetFromImages creates a Dataset over the given image paths, the
// configured image set file is ignored
func NewDatasetFromImages(images []string, cfg Config) (*Dataset, error) {

	if err := cfg.validateSettings(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}

	classes, err := cfg.Classes()

	if err != nil {
		return nil, err
	}

	mode, err := geometry.ParseBoxMode(cfg.BoxMode)

	if err != nil {
		return nil, err
	}

	aug, err := cfg.Augmenter()

	if err != nil {
		return nil, err
	}

	d := &Dataset{
		images:    make([]string, len(images)),
		classes:   classes,
		parser:    annotation.NewParser(classes),
		augmenter: aug,
		filter:    cfg.FilterParams(),
		mode:      mode,
		seed:      cfg.Seed,
	}

	copy(d.images, images)

	return d, nil
}

// SetAugmenter replaces the augmentation pipeline, nil disables augmentation.
// It must not be called while samples are being fetched
func (d *Dataset) SetAugmenter(a augment.Augmenter) {
	d.augmenter = a
}

// Len returns the number of samples
func (d *Dataset) Len() int {
	return len(d.images)
}

// Classes returns the class table used to resolve annotation class names
func (d *Dataset) Classes() *ClassMap {
	return d.classes
}

// Path returns the image path of the sample at index
func (d *Dataset) Path(index int) (string, error) {

	if index < 0 || index >= len(d.images) {
		return "", fmt.Errorf("index %d out of range [0-%d)", index, len(d.images))
	}

	return d.images[index], nil
}

// Sample loads the sample at index.  When a seed is configured the
// augmentation of an index is reproducible across calls
func (d *Dataset) Sample(index int) (*Sample, error) {

	var rng *rand.Rand

	if d.seed != 0 {
		rng = rand.New(rand.NewPCG(d.seed, uint64(index)))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return d.SampleWithRand(index, rng)
}

// SampleWithRand loads the sample at index using rng for augmentation.
// Missing files and malformed labels are returned as errors, boxes that
// are degenerate after augmentation are silently dropped
func (d *Dataset) SampleWithRand(index int, rng *rand.Rand) (*Sample, error) {

	imgPath, err := d.Path(index)

	if err != nil {
		return nil, err
	}

	labelPath := LabelPath(imgPath)

	if _, err := os.Stat(imgPath); err != nil {
		return nil, &PathNotFoundError{Kind: "image", Path: imgPath}
	}

	if _, err := os.Stat(labelPath); err != nil {
		return nil, &PathNotFoundError{Kind: "label", Path: labelPath}
	}

	records, err := d.parser.ParseFile(labelPath)

	if err != nil {
		return nil, errors.WithMessagef(err, "sample %d", index)
	}

	img, err := loadRGB(imgPath)

	if err != nil {
		return nil, err
	}

	quads := make([]geometry.Quad, len(records))

	for i, rec := range records {
		quads[i] = rec.Quad
	}

	if d.augmenter != nil {

		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}

		augImg, augQuads, err := d.augmenter.Transform(img, quads, rng)
		img.Close()

		if err != nil {
			return nil, errors.WithMessagef(err, "sample %d", index)
		}

		if len(augQuads) != len(quads) {
			augImg.Close()
			return nil, fmt.Errorf("sample %d: augmentation returned %d boxes, expected %d",
				index, len(augQuads), len(quads))
		}

		img, quads = augImg, augQuads
	}

	rotated := geometry.QuadsToRotated(quads)
	mask := geometry.ValidMask(rotated, d.filter)
	boxes := NewBoxes(RotatedParams)

	for i, r := range rotated {
		if !mask[i] {
			continue
		}

		p := r.Encode(d.mode)

		err := boxes.Append(p[0], p[1], p[2], p[3], p[4], float32(records[i].Label))

		if err != nil {
			img.Close()
			return nil, errors.Wrapf(err, "error adding box %d of %s", i, imgPath)
		}
	}

	if dropped := len(rotated) - boxes.Len(); dropped > 0 {
		klog.V(2).Infof("%s: dropped %d degenerate boxes", imgPath, dropped)
	}

	return &Sample{
		Image: img,
		Boxes: boxes,
		Path:  imgPath,
	}, nil
}

// LabelPath returns the label file of an image, for an image at
// root/images/name.png this is root/labelTxt/name.txt
func LabelPath(imagePath string) string {
	root := filepath.Dir(filepath.Dir(imagePath))
	base := filepath.Base(imagePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(root, labelDir, name+".txt")
}

// LoadImageSet reads the image set index file, one image path per line.
// Blank lines are skipped
func LoadImageSet(path string) ([]string, error) {

	f, err := os.Open(path)

	if err != nil {
		if os.IsNotExist(err) {
			return nil, &PathNotFoundError{Kind: "image set", Path: path}
		}
		return nil, errors.Wrapf(err, "error opening image set")
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var images []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		images = append(images, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading image set %s", path)
	}

	return images, nil
}

// loadRGB decodes the image file into a 3 channel RGB Mat
func loadRGB(path string) (gocv.Mat, error) {

	bgr := gocv.IMRead(path, gocv.IMReadColor)
	defer bgr.Close()

	if bgr.Empty() {
		return gocv.Mat{}, fmt.Errorf("error decoding image %s", path)
	}

	rgb := gocv.NewMat()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	return rgb, nil
}
