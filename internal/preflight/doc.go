// Package preflight provides readiness checks for the filesystem paths,
// external binaries and Bot API access that a sync pass depends on.
//
// The "voicenotes check" command runs RunAll and prints each Result; a
// missing target chat is reported but only means registration mode.
package preflight
