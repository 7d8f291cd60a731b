// Package source resolves upstream image URLs from templates such as
// "https://images.example.com/:size/:name" using request parameters.
package source

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

// placeholder matches ":name" where name is a maximal run of ASCII letters.
var placeholder = regexp.MustCompile(`:[A-Za-z]+`)

// Template is an immutable parsed URL template.
type Template struct {
	raw   string
	names []string
}

// Parse parses a URL template. Any text is a valid template; a template
// without placeholders always resolves to itself.
func Parse(template string) *Template {
	matches := placeholder.FindAllString(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1:])
	}
	return &Template{raw: template, names: names}
}

// String returns the raw template.
func (t *Template) String() string {
	return t.raw
}

// Names returns the placeholder names in template order, duplicates included.
func (t *Template) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Resolve substitutes every placeholder with its parameter value. Values
// are inserted as received, without further escaping. Resolve does not
// modify params and returns the same URL for the same input.
func (t *Template) Resolve(params map[string]string) (string, error) {
	for _, name := range t.names {
		if _, ok := params[name]; !ok {
			return "", util.NewMissingParameterError(name, t.raw)
		}
	}
	return placeholder.ReplaceAllStringFunc(t.raw, func(m string) string {
		return params[m[1:]]
	}), nil
}

// Basename returns the last element of the URL path, ignoring the query
// string and fragment.
func Basename(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.EscapedPath()
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}

// Extension returns the lower-cased file extension of the URL path
// without the leading dot, or "" when there is none.
func Extension(rawURL string) string {
	ext := path.Ext(Basename(rawURL))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
