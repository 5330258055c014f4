// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter
// calls so that webhook and poll endpoints return the same JSON envelope
// and error structure.
package httputil
