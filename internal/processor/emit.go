package processor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vyrodovalexey/avaimg/internal/fetch"
	"github.com/vyrodovalexey/avaimg/internal/imaging"
	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/util"
)

// Response header names.
const (
	headerDate          = "Date"
	headerContentType   = "Content-Type"
	headerContentLength = "Content-Length"
	headerLastModified  = "Last-Modified"
	headerExpires       = "Expires"
	headerCacheControl  = "Cache-Control"

	noCache = "no-cache"
)

func (p *Processor) log(c *Context) observability.Logger {
	return p.logger.WithContext(c.Context()).With(observability.String("route", p.pattern.String()))
}

func (p *Processor) httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// fail writes a 500 text/plain response carrying err's message, unless
// the response has already started.
func (p *Processor) fail(rw *util.ResponseRecorder, err error) {
	if rw.HeaderWritten {
		return
	}
	h := rw.Header()
	h.Set(headerDate, p.httpDate(p.now()))
	h.Set(headerContentType, "text/plain")
	h.Set(headerCacheControl, noCache)
	h.Del(headerContentLength)
	rw.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(rw, err.Error())
}

// forward relays a non-200 upstream response without transforming it.
func (p *Processor) forward(c *Context, rw *util.ResponseRecorder, res *fetch.Result) {
	defer res.Body.Close()

	h := rw.Header()
	h.Set(headerDate, p.httpDate(p.now()))
	if ct := res.Header.Get(headerContentType); ct != "" {
		h.Set(headerContentType, ct)
	}
	h.Set(headerCacheControl, noCache)
	rw.WriteHeader(res.StatusCode)

	if _, err := io.Copy(rw, res.Body); err != nil {
		p.log(c).Warn("forwarding upstream response failed",
			observability.Int("status", res.StatusCode),
			observability.Error(err),
		)
	}
}

// writeHead sets the success headers and the status line.
func (p *Processor) writeHead(c *Context, rw *util.ResponseRecorder, img *imaging.Image, length int) {
	now := p.now()
	h := rw.Header()
	h.Set(headerDate, p.httpDate(now))

	contentType := c.ContentType
	if contentType == "" || (img.Modified() && img.FormatName() != img.SourceFormat()) {
		contentType = img.ContentType()
	}
	h.Set(headerContentType, contentType)

	if c.LastModified != "" {
		h.Set(headerLastModified, c.LastModified)
	}
	if p.opts.CacheExpiration != nil {
		maxAge := *p.opts.CacheExpiration
		h.Set(headerExpires, p.httpDate(now.Add(time.Duration(maxAge)*time.Second)))
		h.Set(headerCacheControl, "public, max-age="+strconv.Itoa(maxAge))
	}
	if length >= 0 {
		h.Set(headerContentLength, strconv.Itoa(length))
	}
	rw.WriteHeader(http.StatusOK)
}

func (p *Processor) emit(ctx context.Context, c *Context, rw *util.ResponseRecorder, img *imaging.Image) (err error) {
	defer p.observe("emit", time.Now())

	_, span := observability.StartStage(ctx, "emit")
	defer func() { observability.EndSpan(span, err) }()

	if p.opts.Stream {
		err = p.emitStream(c, rw, img)
	} else {
		err = p.emitBuffered(c, rw, img)
	}

	p.metrics.emittedBytes.WithLabelValues(p.pattern.String()).Add(float64(rw.BytesWritten))
	if err != nil {
		p.log(c).Warn("emitting image failed",
			observability.Int64("bytes_written", rw.BytesWritten),
			observability.Error(err),
		)
	}
	return err
}

func (p *Processor) emitBuffered(c *Context, rw *util.ResponseRecorder, img *imaging.Image) error {
	data, err := img.Bytes()
	if err != nil {
		p.fail(rw, err)
		return util.NewEmitError(false, err)
	}

	p.writeHead(c, rw, img, len(data))
	if _, err := rw.Write(data); err != nil {
		return util.NewEmitError(rw.BytesWritten > 0, err)
	}
	return nil
}

func (p *Processor) emitStream(c *Context, rw *util.ResponseRecorder, img *imaging.Image) error {
	stream := img.Stream()
	defer stream.Close()

	// Wait for the first encoded bytes so encoder errors can still
	// become a 500.
	br := bufio.NewReader(stream)
	if _, err := br.Peek(1); err != nil && !errors.Is(err, io.EOF) {
		p.fail(rw, err)
		return util.NewEmitError(false, err)
	}

	p.writeHead(c, rw, img, -1)
	if _, err := io.Copy(rw, br); err != nil {
		return util.NewEmitError(rw.BytesWritten > 0, err)
	}
	rw.Flush()
	return nil
}
