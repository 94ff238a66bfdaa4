package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voicenotes/internal/logging"
	"voicenotes/internal/media/audio"
	"voicenotes/internal/services"
	"voicenotes/internal/testsupport"
)

func newNormalizer(t *testing.T) (*audio.FFmpegNormalizer, string, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMediaStubs())
	return audio.NewFFmpegNormalizer(audio.OptionsFromConfig(cfg), logging.NewNop()), cfg.Paths.RecordingsDir, cfg.Audio.FFmpegBinary
}

func tempDirOf(recordingsDir string) string {
	return filepath.Join(filepath.Dir(recordingsDir), "tmp")
}

func TestNormalizeTranscodesToOpus(t *testing.T) {
	normalizer, dir, ffmpeg := newNormalizer(t)
	source := testsupport.WriteRecording(t, dir, "2024-05-01 walk.m4a", "aac data")

	result, err := normalizer.Normalize(context.Background(), source)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !result.Converted {
		t.Fatal("expected conversion for aac input")
	}
	if filepath.Base(result.Path) != "2024-05-01 walk.ogg" {
		t.Fatalf("unexpected output name %q", result.Path)
	}
	if result.Duration != 2 {
		t.Fatalf("expected probed duration, got %v", result.Duration)
	}

	calls := testsupport.FFmpegInvocations(t, ffmpeg)
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	wantFilter := "silenceremove=start_periods=1:start_threshold=-50dB:stop_periods=-1:stop_duration=1:stop_threshold=-50dB"
	for _, want := range []string{wantFilter, "-c:a libopus", "-b:a 131072", "-map 0:0"} {
		if !strings.Contains(calls[0], want) {
			t.Fatalf("expected %q in ffmpeg args %q", want, calls[0])
		}
	}

	tempDir := filepath.Dir(result.Path)
	if err := result.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed, got %v", err)
	}
	if err := result.Cleanup(); err != nil {
		t.Fatalf("second Cleanup returned error: %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive cleanup: %v", err)
	}
}

func TestNormalizePassesThroughOggOpus(t *testing.T) {
	normalizer, dir, ffmpeg := newNormalizer(t)
	source := testsupport.WriteRecording(t, dir, "note.ogg", "opus data")

	result, err := normalizer.Normalize(context.Background(), source)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if result.Converted || result.Path != source {
		t.Fatalf("expected source returned untouched, got %+v", result)
	}
	if calls := testsupport.FFmpegInvocations(t, ffmpeg); len(calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %v", calls)
	}
	if err := result.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("cleanup must not remove the source: %v", err)
	}
}

func TestNormalizeFailuresAreConversionFailed(t *testing.T) {
	normalizer, dir, _ := newNormalizer(t)
	cases := map[string]string{
		"corrupt.m4a": testsupport.MarkerCorrupt,
		"multi.m4a":   testsupport.MarkerMultiStream,
		"encode.m4a":  testsupport.MarkerEncodeFail,
	}
	for name, content := range cases {
		source := testsupport.WriteRecording(t, dir, name, content)
		result, err := normalizer.Normalize(context.Background(), source)
		if err == nil {
			t.Fatalf("%s: expected error, got %+v", name, result)
		}
		if !errors.Is(err, services.ErrConversionFailed) {
			t.Fatalf("%s: expected conversion failure, got %v", name, err)
		}
		if services.Classify(err) != services.OutcomeItem {
			t.Fatalf("%s: conversion failures must be per-item", name)
		}
	}

	leftovers, err := os.ReadDir(tempDirOf(dir))
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected failed encodes to clean up, found %d entries", len(leftovers))
	}
}

func TestNormalizeMissingFile(t *testing.T) {
	normalizer, dir, _ := newNormalizer(t)
	_, err := normalizer.Normalize(context.Background(), filepath.Join(dir, "gone.m4a"))
	if !errors.Is(err, services.ErrConversionFailed) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found conversion failure, got %v", err)
	}
}

func TestNilNormalizedCleanup(t *testing.T) {
	var n *audio.Normalized
	if err := n.Cleanup(); err != nil {
		t.Fatalf("nil cleanup should be a no-op: %v", err)
	}
}
