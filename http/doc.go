// Package http exposes the library over a JSON REST API, plus the two
// gateway handlers that front it for browsers.
//
// # API Routes
//
//   - POST /auth/signup, POST /auth/login: open; return {token, user}
//   - GET /auth/me: whoami from token claims, no store lookup
//   - POST /books: base64 JSON upload
//   - GET /books: page listing with page-local q/genre filters
//   - GET /books/{bookID}: record plus a presigned retrieval URL
//   - DELETE /books/{bookID}: admin role only
//
// Everything under the authenticated group requires an Authorization
// Bearer token validated by a TokenVerifier.
//
// # Error Contract
//
// Errors are JSON bodies of the form {"message": "...", "details": ...}
// where details appears only for validation failures. Domain errors map
// to statuses in HandleError; unmapped errors become an opaque 500 with
// a per-handler fallback message.
//
// # Gateway Handlers
//
// ReverseProxy forwards /api/proxy/* to a per-request resolved upstream
// API. BlobProxy streams objects from allow-listed storage hosts so
// browsers can render files whose endpoint is not directly reachable.
package http
