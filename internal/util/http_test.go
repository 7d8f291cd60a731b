package util

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseRecorder(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseRecorder(rec)

	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.False(t, rw.HeaderWritten)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	n, err := rw.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, http.StatusNotFound, rw.StatusCode)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int64(5), rw.BytesWritten)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestResponseRecorder_WriteMarksHeader(t *testing.T) {
	t.Parallel()

	rw := NewResponseRecorder(httptest.NewRecorder())
	_, _ = rw.Write([]byte("x"))

	assert.True(t, rw.HeaderWritten)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}

func TestNewResponseRecorder_Reuses(t *testing.T) {
	t.Parallel()

	rw := NewResponseRecorder(httptest.NewRecorder())

	assert.Same(t, rw, NewResponseRecorder(rw))
	assert.NotNil(t, rw.Unwrap())
}

func TestResponseRecorder_Flush(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseRecorder(rec)
	rw.Flush()

	assert.True(t, rec.Flushed)
}

func TestResponseRecorder_ReadFrom(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseRecorder(rec)

	n, err := io.Copy(rw, strings.NewReader("streamed body"))
	assert.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, int64(13), rw.BytesWritten)
	assert.True(t, rw.HeaderWritten)
	assert.Equal(t, "streamed body", rec.Body.String())
}
