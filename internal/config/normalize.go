package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTelegram(); err != nil {
		return err
	}
	c.normalizeRecordings()
	c.normalizeAudio()
	c.normalizeAcknowledgment()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RecordingsDir, err = expandPath(strings.TrimSpace(c.Paths.RecordingsDir)); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	return nil
}

// normalizeTelegram resolves the bot token. The config value wins, then the
// TELEGRAM_BOT_TOKEN environment variable, then the JSON token file.
func (c *Config) normalizeTelegram() error {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIURL), "/")
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultTelegramTimeout
	}

	var err error
	if c.Telegram.TokenFile, err = expandPath(strings.TrimSpace(c.Telegram.TokenFile)); err != nil {
		return fmt.Errorf("telegram.token_file: %w", err)
	}

	if c.Telegram.Token != "" {
		return nil
	}
	if value, ok := os.LookupEnv(defaultTelegramTokenEnv); ok && strings.TrimSpace(value) != "" {
		c.Telegram.Token = strings.TrimSpace(value)
		return nil
	}
	if c.Telegram.TokenFile == "" {
		return nil
	}
	token, err := readTokenFile(c.Telegram.TokenFile)
	if err != nil {
		return fmt.Errorf("telegram.token_file: %w", err)
	}
	c.Telegram.Token = token
	return nil
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	token, _ := payload[defaultTelegramTokenFileJSON].(string)
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%s has no %q field", path, defaultTelegramTokenFileJSON)
	}
	return token, nil
}

func (c *Config) normalizeRecordings() {
	ext := strings.ToLower(strings.TrimSpace(c.Recordings.Extension))
	if ext == "" {
		ext = defaultRecordingExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Recordings.Extension = ext
	if c.Recordings.MaxConcurrentSends == 0 {
		c.Recordings.MaxConcurrentSends = defaultMaxConcurrentSends
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = "ffmpeg"
	}
	c.Audio.FFprobeBinary = strings.TrimSpace(c.Audio.FFprobeBinary)
	if c.Audio.FFprobeBinary == "" {
		c.Audio.FFprobeBinary = "ffprobe"
	}
	if c.Audio.Bitrate == 0 {
		c.Audio.Bitrate = defaultAudioBitrate
	}
	if c.Audio.SilenceStopDuration == 0 {
		c.Audio.SilenceStopDuration = defaultSilenceStopDuration
	}
	c.Audio.SilenceThreshold = strings.TrimSpace(c.Audio.SilenceThreshold)
	if c.Audio.SilenceThreshold == "" {
		c.Audio.SilenceThreshold = defaultSilenceThreshold
	}
}

func (c *Config) normalizeAcknowledgment() {
	glyphs := make([]string, 0, len(c.Acknowledgment.DoneReactions))
	seen := make(map[string]struct{}, len(c.Acknowledgment.DoneReactions))
	for _, glyph := range c.Acknowledgment.DoneReactions {
		glyph = strings.TrimSpace(glyph)
		if glyph == "" {
			continue
		}
		if _, exists := seen[glyph]; exists {
			continue
		}
		seen[glyph] = struct{}{}
		glyphs = append(glyphs, glyph)
	}
	c.Acknowledgment.DoneReactions = glyphs
	c.Acknowledgment.ConfirmationReaction = strings.TrimSpace(c.Acknowledgment.ConfirmationReaction)
	c.Acknowledgment.Greeting = strings.TrimSpace(c.Acknowledgment.Greeting)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
