// Package route compiles slash-separated path patterns and extracts the
// named variables they bind.
//
// A pattern such as "/thumb/:size/:name" is split into segments. Segments
// starting with ':' are variables and accept any value; all others are
// literals compared exactly. A path matches only when it has the same
// number of segments as the pattern.
//
// A variable written as ":name.ext" splits the path segment at its last
// dot: name binds the stem and ext binds the file extension, so
// "/a/:x/:y.ext" applied to "/a/1/2.jpg" yields x=1, y=2 and ext=jpg.
// Such a segment only accepts path segments that carry an extension.
package route

import (
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

// SegmentKind distinguishes literal from variable segments.
type SegmentKind int

const (
	// Literal segments must equal the path segment exactly.
	Literal SegmentKind = iota
	// Variable segments bind the path segment to a parameter name.
	Variable
)

// String returns the kind name.
func (k SegmentKind) String() string {
	if k == Variable {
		return "variable"
	}
	return "literal"
}

// Segment is one element of a compiled pattern. For variables Value
// holds the parameter name without the leading ':' and Ext, when set,
// names the parameter bound to the file extension.
type Segment struct {
	Kind  SegmentKind
	Value string
	Ext   string
}

// Pattern is an immutable compiled route pattern.
type Pattern struct {
	source   string
	segments []Segment
}

// Compile parses pattern into a Pattern.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, util.NewInvalidRouteError(pattern, "pattern is empty")
	}

	parts := split(pattern)
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		if !strings.HasPrefix(part, ":") {
			segments = append(segments, Segment{Kind: Literal, Value: part})
			continue
		}
		name, ext, hasExt := strings.Cut(part[1:], ".")
		if name == "" {
			return nil, util.NewInvalidRouteError(pattern, "variable segment has no name")
		}
		if hasExt && ext == "" {
			return nil, util.NewInvalidRouteError(pattern, "variable "+name+" has an empty extension name")
		}
		segments = append(segments, Segment{Kind: Variable, Value: name, Ext: ext})
	}

	return &Pattern{source: pattern, segments: segments}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// split breaks a path on '/' and drops the single empty segment produced
// by a leading slash.
func split(path string) []string {
	parts := strings.Split(path, "/")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	return parts
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// Segments returns a copy of the compiled segments.
func (p *Pattern) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Variables returns the parameter names bound by the pattern, in order.
func (p *Pattern) Variables() []string {
	var names []string
	for _, s := range p.segments {
		if s.Kind != Variable {
			continue
		}
		names = append(names, s.Value)
		if s.Ext != "" {
			names = append(names, s.Ext)
		}
	}
	return names
}

// splitExt splits a path segment at its last dot. ok is false when the
// segment has no non-empty extension.
func splitExt(part string) (stem, ext string, ok bool) {
	i := strings.LastIndexByte(part, '.')
	if i < 0 || i == len(part)-1 {
		return "", "", false
	}
	return part[:i], part[i+1:], true
}

// Match reports whether path satisfies the pattern.
func (p *Pattern) Match(path string) bool {
	return p.match(split(path))
}

func (p *Pattern) match(parts []string) bool {
	if len(parts) != len(p.segments) {
		return false
	}
	for i, s := range p.segments {
		switch {
		case s.Kind == Literal && s.Value != parts[i]:
			return false
		case s.Ext != "":
			if _, _, ok := splitExt(parts[i]); !ok {
				return false
			}
		}
	}
	return true
}

// Extract returns the request parameters for path. Query parameters are
// added first, keeping the first value of each key, then route variables
// overwrite them, so a route variable always wins over a query parameter
// of the same name. Extracting a path that does not match fails.
func (p *Pattern) Extract(path, rawQuery string) (map[string]string, error) {
	parts := split(path)
	if !p.match(parts) {
		return nil, &util.InvalidRouteError{
			Pattern: p.source,
			Message: "path " + path + " does not match",
			Cause:   util.ErrNoMatch,
		}
	}

	params := make(map[string]string)
	if rawQuery != "" {
		// Malformed pairs are skipped; ParseQuery still returns the valid ones.
		query, _ := url.ParseQuery(rawQuery)
		for key, values := range query {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}

	for i, s := range p.segments {
		if s.Kind != Variable {
			continue
		}
		if s.Ext == "" {
			params[s.Value] = parts[i]
			continue
		}
		stem, ext, _ := splitExt(parts[i])
		params[s.Value] = stem
		params[s.Ext] = ext
	}

	return params, nil
}
