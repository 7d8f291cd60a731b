package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

func TestTemplate_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		params   map[string]string
		want     string
	}{
		{
			name:     "single placeholder",
			template: "https://img.example.com/:name",
			params:   map[string]string{"name": "lighthouse.jpg"},
			want:     "https://img.example.com/lighthouse.jpg",
		},
		{
			name:     "placeholder with extension",
			template: "http://upstream/:x/:y.:ext",
			params:   map[string]string{"x": "1", "y": "2", "ext": "jpg"},
			want:     "http://upstream/1/2.jpg",
		},
		{
			name:     "port is not a placeholder",
			template: "http://127.0.0.1:8080/:file",
			params:   map[string]string{"file": "a.png"},
			want:     "http://127.0.0.1:8080/a.png",
		},
		{
			name:     "maximal letter run",
			template: "http://upstream/:sizeX2",
			params:   map[string]string{"sizeX": "big"},
			want:     "http://upstream/big2",
		},
		{
			name:     "values are not escaped",
			template: "http://upstream/:name",
			params:   map[string]string{"name": "a%20b.gif"},
			want:     "http://upstream/a%20b.gif",
		},
		{
			name:     "repeated placeholder",
			template: "http://upstream/:id/:id",
			params:   map[string]string{"id": "7"},
			want:     "http://upstream/7/7",
		},
		{
			name:     "no placeholders",
			template: "http://upstream/fixed.png",
			want:     "http://upstream/fixed.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.template).Resolve(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplate_Resolve_Missing(t *testing.T) {
	t.Parallel()

	_, err := Parse("http://upstream/:dir/:name").Resolve(map[string]string{"dir": "a"})
	require.Error(t, err)

	var missing *util.MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "name", missing.Name)
}

func TestTemplate_Resolve_Idempotent(t *testing.T) {
	t.Parallel()

	tmpl := Parse("https://cdn/:dir/:name")
	params := map[string]string{"dir": "photos", "name": "a.jpg"}

	first, err := tmpl.Resolve(params)
	require.NoError(t, err)
	second, err := tmpl.Resolve(params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, map[string]string{"dir": "photos", "name": "a.jpg"}, params)
	assert.Equal(t, []string{"dir", "name"}, tmpl.Names())
	assert.Equal(t, "https://cdn/:dir/:name", tmpl.String())
}

func TestBasenameAndExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		wantBase string
		wantExt  string
	}{
		{url: "http://upstream/1/2.jpg", wantBase: "2.jpg", wantExt: "jpg"},
		{url: "http://upstream/anim.GIF?v=3", wantBase: "anim.GIF", wantExt: "gif"},
		{url: "http://upstream/photo.png#frag", wantBase: "photo.png", wantExt: "png"},
		{url: "http://upstream/noext", wantBase: "noext", wantExt: ""},
		{url: "http://upstream/dir/", wantBase: "", wantExt: ""},
		{url: "http://upstream", wantBase: "", wantExt: ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantBase, Basename(tt.url))
			assert.Equal(t, tt.wantExt, Extension(tt.url))
		})
	}
}
