// Package provision ensures a signed-in identity has an associated
// patient record at session start.
//
// The flow is a small state machine: probe the patient list, select
// the first entry, or create a default patient derived from the
// identity's profile. A hard timeout protects the UI from hanging
// networks, and a generation counter discards the results of
// superseded attempts so a stale create response can never overwrite
// a fresher outcome.
package provision
