// Package access answers the read side of the permission model: which
// grant applies to a (principal, resource) pair, and which resources a
// principal may see at all.
//
// Resolution is a strict two-level override chain. A user-level grant
// always wins, even when it is more restrictive than the group's; the
// group grant applies only when no user grant exists; a nil result
// means "no access signal" and is a normal value, not an error.
//
// The same precedence holds at the aggregate level: visibility listings
// emit user-granted resources first (in store order), then resources
// reachable only through the group, deduplicated so a resource the
// principal can reach both ways appears once with the user grant's
// flags.
package access
