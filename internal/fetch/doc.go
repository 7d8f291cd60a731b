// Package fetch provides the bounded queue that performs upstream image
// GETs for the gateway.
//
// A Queue runs a fixed number of workers. Push never blocks: it appends a
// Task to an unbounded FIFO and returns a Future. A worker takes the
// oldest task, issues the GET and settles the Future as soon as the
// response headers arrive, then goes back for the next task. The body is
// read by whoever waits on the Future, so at most Workers GETs are in
// the connect and header phase at any time.
//
// Task.Timeout acts as a socket idle timeout. It starts when the GET is
// issued and is re-armed by every read of the response body.
//
// The request context passed to Push contributes values (trace and
// request IDs) only. Cancelling it never aborts a fetch that has been
// queued; Future.Wait lets a caller stop waiting instead.
package fetch
