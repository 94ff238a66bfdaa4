// Package services defines shared utilities consumed by the pass phases and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp pass IDs, phase names, remote update IDs, and
//     recording names for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which decides
//     whether a failure aborts the pass or is isolated to one item.
//
// Use these helpers when wiring new pass logic so error handling and
// observability stay uniform across the inbound and outbound phases.
package services
