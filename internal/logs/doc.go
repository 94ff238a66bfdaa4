// Package logs reads the per-pass log files written by `voicenotes sync`.
//
// Latest resolves the newest pass log, Last returns its trailing lines and
// Follow streams lines appended by a pass that is still running.
package logs
