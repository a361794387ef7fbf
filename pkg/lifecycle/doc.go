// Package lifecycle orchestrates resource creation and deletion so
// that resource rows and their grant rows always change together.
//
// Every multi-row write runs inside a single transaction: a project is
// never visible without its creator's grant, and a delete cascade is
// total or not at all. Refusals (no grant, or a grant whose relevant
// flag is false) are normal outcomes, reported through the Outcome
// type rather than errors.
package lifecycle
