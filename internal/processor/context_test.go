package processor

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaimg/internal/observability"
)

func newTestContext(helpers Helpers) *Context {
	return NewContext(httptest.NewRequest(http.MethodGet, "/thumb/a.jpg", nil), helpers, observability.NopLogger())
}

func TestHelpers_Immutable(t *testing.T) {
	t.Parallel()

	source := map[string]HelperFunc{
		"echo": func(_ *Context, args ...any) (any, error) { return args[0], nil },
		"nil":  nil,
	}
	helpers := NewHelpers(source)
	delete(source, "echo")

	assert.True(t, helpers.Has("echo"))
	assert.False(t, helpers.Has("nil"))

	extended := helpers.With("size", func(c *Context, _ ...any) (any, error) { return c.Param("size"), nil })
	assert.False(t, helpers.Has("size"))
	assert.Equal(t, []string{"echo", "size"}, extended.Names())
}

func TestContext_Call(t *testing.T) {
	t.Parallel()

	helpers := NewHelpers(map[string]HelperFunc{
		"param": func(c *Context, args ...any) (any, error) {
			return c.Param(args[0].(string)), nil
		},
	})
	c := newTestContext(helpers)
	c.Params = map[string]string{"size": "large"}

	got, err := c.Call("param", "size")
	require.NoError(t, err)
	assert.Equal(t, "large", got)
	assert.True(t, c.HasHelper("param"))

	_, err = c.Call("absent")
	assert.EqualError(t, err, `unknown helper "absent"`)
	assert.False(t, c.HasHelper("absent"))
}

func TestContext_Accessors(t *testing.T) {
	t.Parallel()

	c := NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), Helpers{}, nil)
	assert.Equal(t, "/x", c.Request().URL.Path)
	assert.NotNil(t, c.Context())
	assert.NotNil(t, c.Logger())
	assert.Empty(t, c.Param("missing"))
	assert.False(t, c.HasHelper(HelperTempDir))
}

func TestContext_CleanupFromGoroutines(t *testing.T) {
	t.Parallel()

	c := newTestContext(Helpers{})
	done := make(chan struct{})
	var ran int
	for i := 0; i < 10; i++ {
		go func() {
			c.OnCleanup(func() error { ran++; return nil })
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	c.OnCleanup(nil)

	assert.Equal(t, 0, c.runCleanup())
	assert.Equal(t, 10, ran)
}

func TestTempDirHelper(t *testing.T) {
	t.Parallel()

	c := newTestContext(NewHelpers(map[string]HelperFunc{HelperTempDir: TempDir}))

	got, err := c.Call(HelperTempDir)
	require.NoError(t, err)
	dir := got.(string)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	c.runCleanup()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestContext_OnCleanupAfterCleanupRunsImmediately(t *testing.T) {
	t.Parallel()

	c := newTestContext(Helpers{})
	var order []string
	c.OnCleanup(func() error { order = append(order, "registered"); return nil })
	assert.Equal(t, 0, c.runCleanup())

	c.OnCleanup(func() error { order = append(order, "late"); return nil })
	assert.Equal(t, []string{"registered", "late"}, order)

	assert.NotPanics(t, func() {
		c.OnCleanup(func() error { return errors.New("late failure") })
		c.OnCleanup(func() error { panic("late panic") })
	})
	assert.Equal(t, 0, c.runCleanup())
	assert.Equal(t, []string{"registered", "late"}, order)
}
