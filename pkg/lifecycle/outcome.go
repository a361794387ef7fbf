package lifecycle

import "errors"

// ErrPermissionDenied is returned by create operations when the
// precondition flag check fails before any write is attempted.
var ErrPermissionDenied = errors.New("permission denied")

// Outcome is the tagged result of a delete or update operation. The
// original model collapsed "no access" and "commit failure" into one
// boolean; the tag keeps them apart for callers that care while
// Succeeded() preserves the boolean collapse for those that don't.
type Outcome int

const (
	// OutcomeOK means the operation committed.
	OutcomeOK Outcome = iota
	// OutcomeNotFound means the resource does not exist.
	OutcomeNotFound
	// OutcomeDenied means the principal's resolved grant (or the lack
	// of one) refused the operation. A normal result, not an error.
	OutcomeDenied
	// OutcomeStorageError means the transactional write failed and was
	// rolled back; the store is unchanged.
	OutcomeStorageError
)

// String returns a string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDenied:
		return "denied"
	case OutcomeStorageError:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the operation committed
func (o Outcome) Succeeded() bool {
	return o == OutcomeOK
}
