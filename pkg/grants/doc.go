// Package grants persists per-principal capability grants over projects
// and flows.
//
// There are four grant tables: user/group x project/flow. Each grant is
// a pure join row keyed by its (principal, resource) pair with a fixed
// set of boolean capability flags. Point lookups that miss return
// storage.ErrNotFound; the access resolver converts a missing row into
// "no access signal", never into an error.
package grants
