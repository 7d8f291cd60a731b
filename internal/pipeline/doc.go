// Package pipeline compiles declarative route steps into transform
// functions.
//
// A step names one image operation and its arguments:
//
//	steps:
//	  - op: resize
//	    width: ":w"
//	  - op: gravity
//	    value: center
//	  - op: crop
//	    width: 200
//	    height: 200
//	  - op: quality
//	    value: 60
//	    when: 'has(params.q) && params.q == "low"'
//
// Arguments may reference request parameters with :name placeholders.
// Literal arguments are checked when the pipeline is compiled; resolved
// placeholders are checked per request. The optional when field is a CEL
// expression over params, a map(string, string) of the request
// parameters, and the step runs only when it evaluates to true.
package pipeline
