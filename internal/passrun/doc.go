// Package passrun wraps a workflow pass in the process-level plumbing of one
// invocation: a per-pass log file with a voicenotes.log pointer, log
// retention, a pass id for correlation, the state directory lock, loading and
// saving the state file, and ntfy notifications.
package passrun
