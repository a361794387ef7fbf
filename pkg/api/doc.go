// Package api exposes the permission resolver and lifecycle coordinator
// over HTTP.
//
// Identity is resolved upstream; every /v1 route expects the acting
// user's id in the X-Flowdeck-User header. Permission resolution
// endpoints return the effective grant, or a null grant when no access
// signal exists for the principal.
package api
