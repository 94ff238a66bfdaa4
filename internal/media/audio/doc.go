// Package audio turns recordings into voice-note-ready Ogg/Opus files.
//
// FFmpegNormalizer probes the input with ffprobe and returns it untouched when
// it already holds a single Opus stream in an Ogg container. Anything else is
// silence-trimmed and re-encoded with libopus into a private temporary
// directory that the caller releases through Normalized.Cleanup.
//
// Probe and encode failures are reported as services.ErrConversionFailed so
// the delivery pipeline can treat them as per-recording failures.
package audio
