package util

import (
	"io"
	"net/http"
)

// ResponseRecorder is an http.ResponseWriter that remembers the status it
// sent and counts body bytes. Middleware and the processor share a single
// recorder per request, so NewResponseRecorder returns an existing one
// unchanged.
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode    int
	HeaderWritten bool
	BytesWritten  int64
}

// NewResponseRecorder wraps w, or returns w when it already is a recorder.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	if rr, ok := w.(*ResponseRecorder); ok {
		return rr
	}
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader forwards the first status only; later calls are dropped the
// way net/http drops superfluous ones.
func (w *ResponseRecorder) WriteHeader(code int) {
	if w.HeaderWritten {
		return
	}
	w.StatusCode = code
	w.HeaderWritten = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseRecorder) Write(b []byte) (int, error) {
	w.HeaderWritten = true
	n, err := w.ResponseWriter.Write(b)
	w.BytesWritten += int64(n)
	return n, err
}

// ReadFrom lets io.Copy reach the underlying writer's ReadFrom, so streamed
// bodies keep the server's sendfile path.
func (w *ResponseRecorder) ReadFrom(src io.Reader) (int64, error) {
	w.HeaderWritten = true
	n, err := io.Copy(w.ResponseWriter, src)
	w.BytesWritten += n
	return n, err
}

func (w *ResponseRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *ResponseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

var (
	_ http.Flusher  = (*ResponseRecorder)(nil)
	_ io.ReaderFrom = (*ResponseRecorder)(nil)
)
