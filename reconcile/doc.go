// Package reconcile puts buffered and streamed completions behind one
// contract: the caller gets exactly what the provider produced, wrapped in a
// Tagged envelope carrying the feedback key, and a Future settles once with a
// summary Result when the response has been fully observed.
//
// Streams are pull-based. Nothing is read from upstream until the caller
// pulls, and the summary is folded chunk by chunk as the caller reads. The
// Future settles exactly once: on io.EOF, on an upstream error, or when the
// caller stops early via Close or by breaking out of All.
package reconcile
