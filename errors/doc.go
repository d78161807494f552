// Package errors defines the coded error type shared by the HTTP surface
// and the resilience layer. Every AppError carries a machine-readable code,
// a user-facing message, a retryable flag, and a recommended HTTP status,
// so handlers can translate any failure into a consistent JSON response.
package errors
