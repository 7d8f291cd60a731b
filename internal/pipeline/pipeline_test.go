package pipeline

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/imaging"
	"github.com/vyrodovalexey/avaimg/internal/processor"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

func sourceImage(t *testing.T, w, h int) *imaging.Image {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	img, err := imaging.Decode(&buf, "test.png", imaging.DecodeOptions{})
	require.NoError(t, err)
	return img
}

func newContext(params map[string]string) *processor.Context {
	c := processor.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), processor.Helpers{}, nil)
	for k, v := range params {
		c.Params[k] = v
	}
	return c
}

func apply(t *testing.T, steps []config.Step, img *imaging.Image, params map[string]string) (*imaging.Image, error) {
	t.Helper()

	compiled, err := compileSteps(steps, options{maxDimension: DefaultMaxDimension})
	require.NoError(t, err)
	return run(compiled, img, newContext(params))
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps []config.Step
	}{
		{name: "unknown op", steps: []config.Step{{Op: "blur", Value: "3"}}},
		{name: "resize without size", steps: []config.Step{{Op: config.OpResize}}},
		{name: "crop bad width", steps: []config.Step{{Op: config.OpCrop, Width: "wide"}}},
		{name: "negative height", steps: []config.Step{{Op: config.OpResize, Height: "-3"}}},
		{name: "width above limit", steps: []config.Step{{Op: config.OpResize, Width: "9000"}}},
		{name: "gravity without value", steps: []config.Step{{Op: config.OpGravity}}},
		{name: "unknown gravity", steps: []config.Step{{Op: config.OpGravity, Value: "Up"}}},
		{name: "quality out of range", steps: []config.Step{{Op: config.OpQuality, Value: "101"}}},
		{name: "unsupported format", steps: []config.Step{{Op: config.OpFormat, Value: "webp"}}},
		{name: "bad expression", steps: []config.Step{{Op: config.OpQuality, Value: "5", When: "params.q =="}}},
		{name: "non-boolean expression", steps: []config.Step{{Op: config.OpQuality, Value: "5", When: "params.q"}}},
		{name: "unknown variable", steps: []config.Step{{Op: config.OpQuality, Value: "5", When: "size > 3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fn, err := Compile(tt.steps)
			require.Error(t, err)
			assert.Nil(t, fn)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)
		})
	}
}

func TestCompile_PlaceholdersDeferred(t *testing.T) {
	t.Parallel()

	_, err := Compile([]config.Step{
		{Op: config.OpResize, Width: ":w"},
		{Op: config.OpQuality, Value: ":q"},
		{Op: config.OpFormat, Value: ":fmt"},
	})
	assert.NoError(t, err)
}

func TestCompile_TransformFunc(t *testing.T) {
	t.Parallel()

	fn, err := Compile([]config.Step{{Op: config.OpResize, Width: "4"}})
	require.NoError(t, err)

	res, err := fn(sourceImage(t, 8, 8), newContext(nil))
	require.NoError(t, err)
	assert.False(t, res.IsZero())

	_, err = fn(sourceImage(t, 8, 8), newContext(nil))
	require.NoError(t, err)
}

func TestRun_Operations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		steps      []config.Step
		params     map[string]string
		wantW      int
		wantH      int
		wantFormat string
	}{
		{
			name:       "no steps",
			wantW:      40,
			wantH:      20,
			wantFormat: imaging.FormatPNG,
		},
		{
			name:       "resize keeps aspect",
			steps:      []config.Step{{Op: config.OpResize, Width: "10"}},
			wantW:      10,
			wantH:      5,
			wantFormat: imaging.FormatPNG,
		},
		{
			name:       "resize from params",
			steps:      []config.Step{{Op: config.OpResize, Width: ":w", Height: ":h"}},
			params:     map[string]string{"w": "7", "h": "3"},
			wantW:      7,
			wantH:      3,
			wantFormat: imaging.FormatPNG,
		},
		{
			name: "gravity then crop",
			steps: []config.Step{
				{Op: config.OpGravity, Value: "center"},
				{Op: config.OpCrop, Width: "10", Height: "10"},
			},
			wantW:      10,
			wantH:      10,
			wantFormat: imaging.FormatPNG,
		},
		{
			name:       "crop with one dimension",
			steps:      []config.Step{{Op: config.OpCrop, Height: "8"}},
			wantW:      40,
			wantH:      8,
			wantFormat: imaging.FormatPNG,
		},
		{
			name: "format and quality",
			steps: []config.Step{
				{Op: config.OpFormat, Value: "jpg"},
				{Op: config.OpQuality, Value: "30"},
			},
			wantW:      40,
			wantH:      20,
			wantFormat: imaging.FormatJPEG,
		},
		{
			name: "condition true",
			steps: []config.Step{
				{Op: config.OpResize, Width: "20", When: `has(params.size) && params.size == "small"`},
			},
			params:     map[string]string{"size": "small"},
			wantW:      20,
			wantH:      10,
			wantFormat: imaging.FormatPNG,
		},
		{
			name: "condition false skips step",
			steps: []config.Step{
				{Op: config.OpResize, Width: "20", When: `has(params.size) && params.size == "small"`},
			},
			params:     map[string]string{"size": "large"},
			wantW:      40,
			wantH:      20,
			wantFormat: imaging.FormatPNG,
		},
		{
			name: "condition on missing param",
			steps: []config.Step{
				{Op: config.OpResize, Width: "20", When: `has(params.size)`},
			},
			wantW:      40,
			wantH:      20,
			wantFormat: imaging.FormatPNG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img, err := apply(t, tt.steps, sourceImage(t, 40, 20), tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Width())
			assert.Equal(t, tt.wantH, img.Height())
			assert.Equal(t, tt.wantFormat, img.FormatName())
		})
	}
}

func TestRun_RequestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		steps   []config.Step
		params  map[string]string
		wantErr string
	}{
		{
			name:    "missing placeholder",
			steps:   []config.Step{{Op: config.OpResize, Width: ":w"}},
			wantErr: `missing parameter "w"`,
		},
		{
			name:    "non-numeric placeholder",
			steps:   []config.Step{{Op: config.OpResize, Width: ":w"}},
			params:  map[string]string{"w": "big"},
			wantErr: `invalid size "big"`,
		},
		{
			name:    "bad format from params",
			steps:   []config.Step{{Op: config.OpFormat, Value: ":f"}},
			params:  map[string]string{"f": "svg"},
			wantErr: "unsupported output format",
		},
		{
			name:    "zero resize",
			steps:   []config.Step{{Op: config.OpResize, Width: ":w", Height: ":w"}},
			params:  map[string]string{"w": "0"},
			wantErr: "invalid resize 0x0",
		},
		{
			name:    "size above limit from params",
			steps:   []config.Step{{Op: config.OpResize, Width: ":w"}},
			params:  map[string]string{"w": "40000"},
			wantErr: "size 40000 exceeds the 8192 pixel limit",
		},
		{
			name:    "crop above limit from params",
			steps:   []config.Step{{Op: config.OpCrop, Height: ":h"}},
			params:  map[string]string{"h": "8193"},
			wantErr: "size 8193 exceeds",
		},
		{
			name:    "condition on missing key",
			steps:   []config.Step{{Op: config.OpQuality, Value: "5", When: `params.q == "low"`}},
			wantErr: "step 0 condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := apply(t, tt.steps, sourceImage(t, 40, 20), tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompile_MaxDimension(t *testing.T) {
	t.Parallel()

	steps := []config.Step{{Op: config.OpResize, Width: ":width"}}
	fn, err := Compile(steps, WithMaxDimension(100))
	require.NoError(t, err)

	tests := []struct {
		name    string
		width   string
		wantErr string
	}{
		{name: "at limit", width: "100"},
		{name: "above limit", width: "6000", wantErr: "size 6000 exceeds the 100 pixel limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := fn(sourceImage(t, 10, 10), newContext(map[string]string{"width": tt.width}))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, res.IsZero())
				return
			}
			require.NoError(t, err)
			assert.False(t, res.IsZero())
		})
	}

	_, err = Compile([]config.Step{{Op: config.OpCrop, Width: "101"}}, WithMaxDimension(100))
	assert.ErrorIs(t, err, util.ErrConfigInvalid)

	_, err = Compile([]config.Step{{Op: config.OpCrop, Width: "8000"}}, WithMaxDimension(0))
	assert.NoError(t, err)
}

func TestRun_PixelLimit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))
	img, err := imaging.Decode(&buf, "test.png", imaging.DecodeOptions{MaxPixels: 10000})
	require.NoError(t, err)

	steps := []config.Step{{Op: config.OpResize, Width: ":w", Height: ":w"}}

	_, err = apply(t, steps, img, map[string]string{"w": "1000"})
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrTooLarge)

	out, err := apply(t, steps, img, map[string]string{"w": "100"})
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width())
}
