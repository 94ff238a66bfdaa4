// Package workflow runs one reconciliation pass between the recordings
// directory and the target conversation.
//
// A pass opens a channel session, runs the inbound processor to completion or
// its first stop, and then, when a target chat is configured, runs the
// outbound pipeline and records every delivery in the tracker. The phases
// never overlap, so inbound deletions are visible to the outbound scan and a
// recording acknowledged in this pass is never sent again.
//
// RunPass only mutates state in memory. Persisting it exactly once after a
// successful pass is the caller's job (see internal/passrun).
package workflow
