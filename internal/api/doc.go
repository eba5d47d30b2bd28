// Package api is the typed HTTP client for the clinical-assistant
// REST API.
//
// It covers the plain request/response endpoints (auth, profile,
// patients); the streaming ask-a-question endpoint lives in
// internal/stream. All failures are surfaced as *Error values that
// preserve the original HTTP status and categorize the outcome
// (auth, not found, rate limit, server, network) so callers can make
// policy decisions without string matching.
//
// Auth headers are supplied by an injected HeaderProvider; this package
// never reads or writes credentials itself.
package api
