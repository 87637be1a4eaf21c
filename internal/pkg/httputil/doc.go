// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers use these helpers instead of raw http.ResponseWriter calls so
// every endpoint shares one JSON envelope and one error shape.
package httputil
