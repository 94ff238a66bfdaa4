// Package logging assembles structured slog loggers and formatting helpers used
// across voicenotes.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pass code can tag log lines
// with the pass id, phase, remote update id and recording name. A sync pass
// logs to stdout and tees a debug-level JSON copy into its own file under
// log_dir, which CleanupOldLogs prunes by age.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
