package obbdata

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/annotation"
	"github.com/swdee/go-obbdata/augment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fixtureLabels has header lines, a normal plane, a difficult ship and a
// tall harbor box
const fixtureLabels = "imagesource:GoogleEarth\n" +
	"gsd:0.146\n" +
	"10 10 50 10 50 30 10 30 plane 0\n" +
	"60 60 70 60 70 90 60 90 ship 1\n" +
	"20 40 40 40 40 80 20 80 harbor 0\n"

// newFixture creates an empty dataset directory layout and returns its root
func newFixture(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, labelDir), 0o755))

	return root
}

// addImage writes a solid blue PNG image of the given size and returns its
// path
func addImage(t *testing.T, root, name string, width, height int) string {
	t.Helper()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), height, width,
		gocv.MatTypeCV8UC3)
	defer img.Close()

	path := filepath.Join(root, "images", name+".png")
	require.True(t, gocv.IMWrite(path, img))

	return path
}

// addLabel writes the label file for the named image
func addLabel(t *testing.T, root, name, content string) {
	t.Helper()

	path := filepath.Join(root, labelDir, name+".txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Collate = CollateConfig{Scales: []int{64}, KeepRatio: true, Multiple: 32}
	return cfg
}

func TestLabelPath(t *testing.T) {

	tests := []struct {
		image string
		want  string
	}{
		{"/data/train/images/P0001.png", "/data/train/labelTxt/P0001.txt"},
		{"/data/train/images/P0001.tiff.jpg", "/data/train/labelTxt/P0001.tiff.txt"},
		{"images/a.bmp", "labelTxt/a.txt"},
	}

	for _, tc := range tests {
		assert.Equal(t, filepath.FromSlash(tc.want), LabelPath(filepath.FromSlash(tc.image)))
	}
}

func TestDatasetSample(t *testing.T) {

	root := newFixture(t)
	path := addImage(t, root, "P0001", 120, 100)
	addLabel(t, root, "P0001", fixtureLabels)

	ds, err := NewDatasetFromImages([]string{path}, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 16, ds.Classes().Len())

	sample, err := ds.Sample(0)
	require.NoError(t, err)
	defer sample.Close()

	assert.Equal(t, path, sample.Path)
	assert.Equal(t, 100, sample.Image.Rows())
	assert.Equal(t, 120, sample.Image.Cols())

	// image is converted to RGB, the blue channel is last
	px := sample.Image.GetVecbAt(0, 0)
	assert.Equal(t, uint8(0), px[0])
	assert.Equal(t, uint8(255), px[2])

	// the difficult ship is dropped
	require.Equal(t, RotatedParams, sample.Boxes.Params())
	require.Equal(t, 2, sample.Boxes.Len())

	plane := sample.Boxes.Row(0)
	assert.InDeltaSlice(t, []float32{30, 20, 40, 20, 0, 1}, plane, 1e-3)

	harbor := sample.Boxes.Row(1)
	assert.InDeltaSlice(t, []float32{30, 60, 40, 20, math.Pi / 2, 8}, harbor, 1e-3)
}

func TestDatasetBoxModeXYXYA(t *testing.T) {

	root := newFixture(t)
	path := addImage(t, root, "P0001", 120, 100)
	addLabel(t, root, "P0001", "10 10 50 10 50 30 10 30 plane 0\n")

	cfg := testConfig()
	cfg.BoxMode = "xyxya"

	ds, err := NewDatasetFromImages([]string{path}, cfg)
	require.NoError(t, err)

	sample, err := ds.Sample(0)
	require.NoError(t, err)
	defer sample.Close()

	require.Equal(t, 1, sample.Boxes.Len())
	assert.InDeltaSlice(t, []float32{10, 10, 50, 30, 0, 1}, sample.Boxes.Row(0), 1e-3)
}

func TestDatasetDropsDegenerateBoxes(t *testing.T) {

	root := newFixture(t)
	path := addImage(t, root, "P0001", 64, 64)
	addLabel(t, root, "P0001",
		"5 5 5 5 5 5 5 5 plane 0\n"+
			"0 0 10 0 20 0 30 0 ship 0\n"+
			"10 10 11 10 11 30 10 30 bridge 0\n")

	ds, err := NewDatasetFromImages([]string{path}, testConfig())
	require.NoError(t, err)

	sample, err := ds.Sample(0)
	require.NoError(t, err)
	defer sample.Close()

	// every box is too small, the sample is valid with no boxes
	assert.Equal(t, 0, sample.Boxes.Len())
	assert.Equal(t, RotatedParams, sample.Boxes.Params())
}

func TestDatasetErrors(t *testing.T) {

	root := newFixture(t)

	good := addImage(t, root, "good", 32, 32)
	addLabel(t, root, "good", fixtureLabels)

	noLabel := addImage(t, root, "nolabel", 32, 32)

	malformed := addImage(t, root, "malformed", 32, 32)
	addLabel(t, root, "malformed", "10 10 50 10 50 30 plane\n")

	unknown := addImage(t, root, "unknown", 32, 32)
	addLabel(t, root, "unknown", "10 10 50 10 50 30 10 30 spaceship 0\n")

	missing := filepath.Join(root, "images", "missing.png")
	addLabel(t, root, "missing", fixtureLabels)

	ds, err := NewDatasetFromImages([]string{good, noLabel, malformed, unknown, missing},
		testConfig())
	require.NoError(t, err)

	t.Run("missing label", func(t *testing.T) {
		_, err := ds.Sample(1)

		var pathErr *PathNotFoundError
		require.True(t, errors.As(err, &pathErr))
		assert.Equal(t, "label", pathErr.Kind)
		assert.Equal(t, LabelPath(noLabel), pathErr.Path)
	})

	t.Run("malformed label", func(t *testing.T) {
		_, err := ds.Sample(2)

		var parseErr *annotation.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, LabelPath(malformed), parseErr.File)
		assert.Equal(t, 1, parseErr.Line)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := ds.Sample(3)

		var annErr *annotation.InvalidAnnotationError
		require.True(t, errors.As(err, &annErr))
		assert.Equal(t, "spaceship", annErr.Class)
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := ds.Sample(4)

		var pathErr *PathNotFoundError
		require.True(t, errors.As(err, &pathErr))
		assert.Equal(t, "image", pathErr.Kind)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := ds.Sample(5)
		assert.Error(t, err)

		_, err = ds.Sample(-1)
		assert.Error(t, err)
	})

	t.Run("good sample still loads", func(t *testing.T) {
		sample, err := ds.Sample(0)
		require.NoError(t, err)
		sample.Close()
	})
}

func TestDatasetAugment(t *testing.T) {

	root := newFixture(t)
	path := addImage(t, root, "P0001", 120, 100)
	addLabel(t, root, "P0001", "10 10 50 10 50 30 10 30 plane 0\n")

	cfg := testConfig()
	cfg.Augment = true
	cfg.Pipeline = []augment.StepConfig{{Kind: "hflip", Probability: 1}}
	cfg.Seed = 7

	ds, err := NewDatasetFromImages([]string{path}, cfg)
	require.NoError(t, err)

	sample, err := ds.Sample(0)
	require.NoError(t, err)
	defer sample.Close()

	require.Equal(t, 1, sample.Boxes.Len())
	assert.InDeltaSlice(t, []float32{90, 20, 40, 20, 0, 1}, sample.Boxes.Row(0), 1e-3)

	// a nil augmenter disables augmentation
	ds.SetAugmenter(nil)

	plain, err := ds.Sample(0)
	require.NoError(t, err)
	defer plain.Close()

	assert.InDelta(t, 30, plain.Boxes.Row(0)[0], 1e-3)
}

func TestNewDataset(t *testing.T) {

	root := newFixture(t)
	a := addImage(t, root, "a", 32, 32)
	b := addImage(t, root, "b", 32, 32)

	set := filepath.Join(root, "train.txt")
	require.NoError(t, os.WriteFile(set, []byte(a+"\n\n"+b+"\n"), 0o644))

	cfg := testConfig()
	cfg.ImageSet = set

	ds, err := NewDataset(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	p, err := ds.Path(1)
	require.NoError(t, err)
	assert.Equal(t, b, p)

	cfg.ImageSet = filepath.Join(root, "missing.txt")

	_, err = NewDataset(cfg)

	var pathErr *PathNotFoundError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, "image set", pathErr.Kind)
}
