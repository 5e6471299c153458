// Package httpx is the HTTP plumbing shared by the provider clients and the
// telemetry sender:
//   - request building with base URL, default headers and bearer auth
//   - a single-attempt Do with rate limiting and before/after hooks
//   - an Error type carrying status, request id and a bounded body copy
//   - coarse failure classification (transport, client, server)
package httpx
