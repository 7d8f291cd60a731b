// Package processor runs the request lifecycle of one route: extract
// parameters, resolve the upstream URL, fetch through the shared queue,
// decode and transform, emit the response, and clean up.
//
// Every stage failure short-circuits the later stages and becomes a
// single client-visible outcome:
//
//   - upstream status other than 200: status, Content-Type and body are
//     forwarded with Cache-Control: no-cache and the transform is skipped;
//   - resolve, fetch, decode or transform failure: 500 text/plain with
//     the error message and Cache-Control: no-cache;
//   - write failure after bytes reached the client: an *util.EmitError
//     with Partial set, which the HTTP binding turns into an aborted
//     connection.
//
// Cleanup callbacks registered on the Context run exactly once, in
// registration order, whatever the outcome.
package processor
