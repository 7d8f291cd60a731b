package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaimg/internal/fetch"
	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/route"
	"github.com/vyrodovalexey/avaimg/internal/source"
)

var fixedNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func noiseJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(42)
	for i := range img.Pix {
		seed = seed*1664525 + 1013904223
		img.Pix[i] = byte(seed >> 24)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func twoFrameGIF(t *testing.T) []byte {
	t.Helper()

	g := &gif.GIF{Config: image.Config{Width: 4, Height: 4, ColorModel: color.Palette(palette.Plan9)}}
	for _, c := range []color.Color{color.White, color.Black} {
		frame := image.NewPaletted(image.Rect(0, 0, 4, 4), palette.Plan9)
		idx := uint8(frame.Palette.Index(c))
		for i := range frame.Pix {
			frame.Pix[i] = idx
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, 5)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

type object struct {
	status       int
	contentType  string
	lastModified string
	body         []byte
}

// newUpstream serves fixed bodies keyed by path and 404 for the rest.
func newUpstream(t *testing.T, objects map[string]object) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj, ok := objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("missing " + r.URL.Path))
			return
		}
		if obj.contentType != "" {
			w.Header().Set("Content-Type", obj.contentType)
		}
		if obj.lastModified != "" {
			w.Header().Set("Last-Modified", obj.lastModified)
		}
		if obj.status == 0 {
			obj.status = http.StatusOK
		}
		w.WriteHeader(obj.status)
		_, _ = w.Write(obj.body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newQueue(t *testing.T) *fetch.Queue {
	t.Helper()

	q := fetch.New(2, fetch.WithMetrics(fetch.NewMetrics(prometheus.NewRegistry())))
	t.Cleanup(q.Close)
	return q
}

// recordingFetcher records the tasks it forwards.
type recordingFetcher struct {
	next  Fetcher
	mu    sync.Mutex
	tasks []fetch.Task
}

func (r *recordingFetcher) Push(ctx context.Context, task fetch.Task) *fetch.Future {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
	return r.next.Push(ctx, task)
}

func newProcessor(t *testing.T, pattern, template string, q Fetcher, opts Options, fn TransformFunc) *Processor {
	t.Helper()

	p, err := New(route.MustCompile(pattern), source.Parse(template), q, opts, fn,
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)
	return p
}

// serve runs p for a GET of target and returns the recorded response.
func serve(p *Processor, target string, helpers Helpers, setup func(*Context)) (*httptest.ResponseRecorder, *Context, error) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := NewContext(req, helpers, observability.NopLogger())
	if setup != nil {
		setup(c)
	}
	err := p.Process(c, rec)
	return rec, c, err
}

func intPtr(v int) *int {
	return &v
}
