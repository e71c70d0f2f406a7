// Package preflight verifies that the local environment can support a
// validation run before one starts.
//
// The checks back the doctor command: configuration parses, the sessions
// directory is writable, disk space can absorb checkpoint growth, the
// history database opens, and the plan file (when given) loads. Checks
// never mutate state beyond a temporary write probe and report their
// findings as structured results rather than errors, so a broken
// environment produces a readable diagnosis instead of a stack trace.
package preflight
