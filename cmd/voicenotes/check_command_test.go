package main

import (
	"strings"
	"testing"
)

func TestCheckReportsEveryComponent(t *testing.T) {
	_, server := newFakeBotAPI(t)
	env := setupCLITestEnv(t, server.URL)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, want := range []string{"Recordings directory", "Bot token", "Target chat", "FFmpeg", "FFprobe", "authorized as @notes_bot"} {
		requireContains(t, out, want)
	}
}

func TestCheckOfflineSkipsTelegram(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"check", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("check --offline: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK]")
	if strings.Contains(out, "Telegram:") {
		t.Fatalf("offline check must not contact Telegram: %s", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications not configured")
}
