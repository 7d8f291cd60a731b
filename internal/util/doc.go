// Package util holds the small shared pieces of the image gateway: the
// error types every pipeline stage returns, the per-request RequestInfo
// carried in the context, the ResponseRecorder used by middleware and the
// processor, and URL and ratio validators for configuration.
//
// Error types map each pipeline failure to one client-visible outcome:
//
//   - InvalidRouteError: bad route pattern (setup time)
//   - MissingParameterError: URL template placeholder without a value
//   - TransportError, TimeoutError: upstream fetch failures
//   - ContractViolationError, TransformError: transform stage failures
//   - EmitError: response write failures
//
// Every error type implements Is. It matches a target of the same type,
// so errors.Is(err, &TransformError{}) asks which stage failed, and types
// that stand for a broader condition also match a sentinel, for example
// TimeoutError matches ErrTimeout. errors.As extracts the fields.
package util
