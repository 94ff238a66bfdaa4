package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Markers recognised by the media stubs when present in a recording's content.
const (
	MarkerCorrupt     = "CORRUPT"
	MarkerMultiStream = "MULTI"
	MarkerEncodeFail  = "FAILENC"
)

const ffprobeStub = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffprobe version stub"
  exit 0
fi
for last; do :; done
if grep -q CORRUPT "$last" 2>/dev/null; then
  echo "Invalid data found when processing input" >&2
  exit 1
fi
if grep -q MULTI "$last" 2>/dev/null; then
  echo '{"streams":[{"index":0,"codec_name":"aac","codec_type":"audio"},{"index":1,"codec_name":"aac","codec_type":"audio"}],"format":{"format_name":"mov,mp4,m4a,3gp,3g2,mj2","duration":"2.0"}}'
  exit 0
fi
case "$last" in
  *.ogg)
    echo '{"streams":[{"index":0,"codec_name":"opus","codec_type":"audio"}],"format":{"format_name":"ogg","duration":"2.0"}}'
    ;;
  *)
    echo '{"streams":[{"index":0,"codec_name":"aac","codec_type":"audio"}],"format":{"format_name":"mov,mp4,m4a,3gp,3g2,mj2","duration":"2.0"}}'
    ;;
esac
`

const ffmpegStub = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version stub"
  exit 0
fi
echo "$@" >> "@LOG@"
for last; do :; done
in=""
prev=""
for arg; do
  if [ "$prev" = "-i" ]; then in="$arg"; fi
  prev="$arg"
done
if grep -q FAILENC "$in" 2>/dev/null; then
  echo "Error while encoding" >&2
  exit 1
fi
printf 'OggS' > "$last"
`

// WriteMediaStubs writes ffprobe and ffmpeg scripts into dir and returns their
// paths. ffprobe reports .ogg files as Ogg/Opus and everything else as a
// single AAC stream, fails on content containing MarkerCorrupt and reports two
// streams for MarkerMultiStream. ffmpeg writes a tiny Ogg file to its last
// argument, appends its arguments to ffmpeg.log in dir and fails when the
// input contains MarkerEncodeFail.
func WriteMediaStubs(t testing.TB, dir string) (string, string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir media stubs: %v", err)
	}
	ffprobe := filepath.Join(dir, "ffprobe")
	ffmpeg := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(ffprobe, []byte(ffprobeStub), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	script := strings.ReplaceAll(ffmpegStub, "@LOG@", filepath.Join(dir, "ffmpeg.log"))
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return ffprobe, ffmpeg
}

// FFmpegInvocations returns the argument lines recorded by the ffmpeg stub
// next to the given ffmpeg binary path.
func FFmpegInvocations(t testing.TB, ffmpegBinary string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(ffmpegBinary), "ffmpeg.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read ffmpeg log: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// WriteRecording creates a recording with the given content in dir.
func WriteRecording(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write recording %s: %v", name, err)
	}
	return path
}
