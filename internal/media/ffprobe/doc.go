// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties
//   - Format: container-level metadata
//
// Inspect executes ffprobe and returns the parsed Result. AudioStream and
// IsOggOpus answer the two questions the normalizer asks of a recording.
package ffprobe
