// Package routes declares HTTP routes as data so each domain package can
// describe its surface and the server can mount it under a prefix.
package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}
