// Package middleware provides HTTP middleware for principal extraction
// and request logging.
package middleware
