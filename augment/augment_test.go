package augment

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/swdee/go-obbdata/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

// whiteCentroid returns the mean position of the non black pixels
func whiteCentroid(t *testing.T, img gocv.Mat) (float64, float64) {
	t.Helper()

	data, err := img.DataPtrUint8()
	require.NoError(t, err)

	var sx, sy, n float64
	ch := img.Channels()

	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Cols(); x++ {
			if data[(y*img.Cols()+x)*ch] > 127 {
				sx += float64(x) + 0.5
				sy += float64(y) + 0.5
				n++
			}
		}
	}

	require.NotZero(t, n)
	return sx / n, sy / n
}

func quadCenter(q geometry.Quad) (float64, float64) {
	var cx, cy float64
	for v := 0; v < 4; v++ {
		x, y := q.Point(v)
		cx += float64(x) / 4
		cy += float64(y) / 4
	}
	return cx, cy
}

// testImage returns a black image with a white filled rectangle and the quad
// describing it
func testImage(t *testing.T) (gocv.Mat, geometry.Quad) {
	t.Helper()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 240, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&img, image.Rect(60, 80, 120, 110), white, -1)

	return img, geometry.Quad{60, 80, 120, 80, 120, 110, 60, 110}
}

func TestFlips(t *testing.T) {

	img, quad := testImage(t)
	defer img.Close()

	tests := []struct {
		name string
		tr   Transform
		want geometry.Quad
	}{
		{"horizontal", HorizontalFlip{}, geometry.Quad{180, 80, 120, 80, 120, 110, 180, 110}},
		{"vertical", VerticalFlip{}, geometry.Quad{60, 120, 120, 120, 120, 90, 60, 90}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, quads, err := tc.tr.Apply(img, []geometry.Quad{quad}, newRand())
			require.NoError(t, err)
			defer out.Close()

			require.Len(t, quads, 1)
			assert.Equal(t, tc.want, quads[0])

			// the flipped pixels follow the flipped box
			px, py := whiteCentroid(t, out)
			qx, qy := quadCenter(quads[0])
			assert.InDelta(t, qx, px, 0.5)
			assert.InDelta(t, qy, py, 0.5)
		})
	}

	// input quad is not modified
	assert.Equal(t, geometry.Quad{60, 80, 120, 80, 120, 110, 60, 110}, quad)
}

func TestAffineMatrix(t *testing.T) {

	identity := AffineMatrix(0, 1, 0, 0, 100, 50)

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			assert.InDelta(t, want, identity.At(r, c), 1e-9)
		}
	}

	// 90 degrees about the center (50, 50) then shift 10 pixels right
	m := AffineMatrix(90, 1, 10, 0, 100, 100)
	out := TransformQuads(m, []geometry.Quad{{60, 50, 60, 50, 60, 50, 60, 50}})
	require.Len(t, out, 1)
	assert.InDelta(t, 60, out[0][0], 1e-4)
	assert.InDelta(t, 60, out[0][1], 1e-4)

	assert.Empty(t, TransformQuads(m, nil))
}

func TestAffineKeepsCorrespondence(t *testing.T) {

	img, quad := testImage(t)
	defer img.Close()

	rng := newRand()
	tr := Affine{Degree: 20, Translate: 0.1, Scale: 0.2}

	for i := 0; i < 5; i++ {
		out, quads, err := tr.Apply(img, []geometry.Quad{quad}, rng)
		require.NoError(t, err)

		assert.Equal(t, img.Rows(), out.Rows())
		assert.Equal(t, img.Cols(), out.Cols())

		px, py := whiteCentroid(t, out)
		qx, qy := quadCenter(quads[0])
		assert.InDelta(t, qx, px, 1.5)
		assert.InDelta(t, qy, py, 1.5)

		// area scales with the square of the scale factor
		r := geometry.QuadToRotated(quads[0])
		assert.InDelta(t, 60*30, float64(r.Width*r.Height), 60*30*0.45)

		out.Close()
	}
}

func TestPhotometricKeepsBoxes(t *testing.T) {

	img, quad := testImage(t)
	defer img.Close()

	for _, tr := range []Transform{HSV{0.5, 0.5}, Noise{Sigma: 0.02}, Blur{Sigma: 1.3}} {
		out, quads, err := tr.Apply(img, []geometry.Quad{quad}, newRand())
		require.NoError(t, err)

		assert.Equal(t, []geometry.Quad{quad}, quads)
		assert.Equal(t, img.Rows(), out.Rows())
		assert.Equal(t, img.Cols(), out.Cols())
		assert.Equal(t, 3, out.Channels())

		out.Close()
	}
}

func TestVisibleFraction(t *testing.T) {

	tests := []struct {
		name string
		quad geometry.Quad
		want float64
	}{
		{"inside", geometry.Quad{10, 10, 30, 10, 30, 20, 10, 20}, 1},
		{"half outside", geometry.Quad{-10, 10, 10, 10, 10, 20, -10, 20}, 0.5},
		{"outside", geometry.Quad{-40, -40, -20, -40, -20, -20, -40, -20}, 0},
		{"degenerate", geometry.Quad{5, 5, 5, 5, 5, 5, 5, 5}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, VisibleFraction(tc.quad, 100, 100), 1e-3)
		})
	}
}

func TestClipToImage(t *testing.T) {

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	quads := []geometry.Quad{
		{10, 10, 30, 10, 30, 20, 10, 20},
		{-40, -40, -20, -40, -20, -20, -40, -20},
	}

	out, clipped, err := ClipToImage{MinVisibility: 0.1}.Apply(img, quads, newRand())
	require.NoError(t, err)
	defer out.Close()

	require.Len(t, clipped, 2)
	assert.Equal(t, quads[0], clipped[0])

	r := geometry.QuadToRotated(clipped[1])
	assert.False(t, geometry.DefaultFilterParams().Valid(r))
}

// failing is a Transform that always errors
type failing struct{}

func (failing) Apply(img gocv.Mat, quads []geometry.Quad, rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {
	return gocv.Mat{}, nil, errors.New("boom")
}

// dropping is a Transform that loses boxes
type dropping struct{}

func (dropping) Apply(img gocv.Mat, quads []geometry.Quad, rng *rand.Rand) (gocv.Mat, []geometry.Quad, error) {
	return img.Clone(), nil, nil
}

func TestPipeline(t *testing.T) {

	img, quad := testImage(t)
	defer img.Close()

	t.Run("probability", func(t *testing.T) {
		p := New(
			Step{Kind: "hflip", Transform: HorizontalFlip{}, Probability: 1},
			Step{Kind: "vflip", Transform: VerticalFlip{}, Probability: 0},
		)

		out, quads, err := p.Transform(img, []geometry.Quad{quad}, newRand())
		require.NoError(t, err)
		defer out.Close()

		assert.Equal(t, geometry.Quad{180, 80, 120, 80, 120, 110, 180, 110}, quads[0])
	})

	t.Run("no steps returns a copy", func(t *testing.T) {
		out, quads, err := New().Transform(img, []geometry.Quad{quad}, newRand())
		require.NoError(t, err)
		defer out.Close()

		assert.Equal(t, []geometry.Quad{quad}, quads)
		assert.Equal(t, img.Rows(), out.Rows())
	})

	t.Run("error", func(t *testing.T) {
		p := New(Step{Kind: "failing", Transform: failing{}, Probability: 1})

		_, _, err := p.Transform(img, []geometry.Quad{quad}, newRand())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failing")
	})

	t.Run("box count changed", func(t *testing.T) {
		p := New(Step{Kind: "dropping", Transform: dropping{}, Probability: 1})

		_, _, err := p.Transform(img, []geometry.Quad{quad}, newRand())
		assert.Error(t, err)
	})
}

func TestFromConfig(t *testing.T) {

	p, err := FromConfig(DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, p.Steps(), 7)
	assert.Equal(t, Affine{Degree: 20, Translate: 0.1, Scale: 0.2}, p.Steps()[3].Transform)

	p, err = FromConfig([]StepConfig{{Kind: "blur", Probability: 1}})
	require.NoError(t, err)
	assert.Equal(t, Blur{Sigma: 1.3}, p.Steps()[0].Transform)

	_, err = FromConfig([]StepConfig{{Kind: "mosaic", Probability: 0.5}})
	assert.Error(t, err)

	_, err = FromConfig([]StepConfig{{Kind: "hflip", Probability: 1.5}})
	assert.Error(t, err)

	// full default pipeline runs end to end
	img, quad := testImage(t)
	defer img.Close()

	p, err = FromConfig(DefaultConfig())
	require.NoError(t, err)

	out, quads, err := p.Transform(img, []geometry.Quad{quad}, newRand())
	require.NoError(t, err)
	defer out.Close()
	assert.Len(t, quads, 1)
}
