package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRecordings(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateAcknowledgment(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"telegram.request_timeout":      c.Telegram.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/voicenotes/config.toml"
		}
		return fmt.Errorf("telegram.token is required. Set TELEGRAM_BOT_TOKEN, telegram.token_file, or edit %s (create with 'voicenotes config init')", defaultPath)
	}
	if c.Telegram.ChatID != nil && *c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id must be non-zero when set (omit it to run in registration mode)")
	}
	if c.Telegram.APIURL != "" && !strings.HasPrefix(c.Telegram.APIURL, "http://") && !strings.HasPrefix(c.Telegram.APIURL, "https://") {
		return fmt.Errorf("telegram.api_url must be an http(s) URL, got %q", c.Telegram.APIURL)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.RecordingsDir == "" {
		return errors.New("paths.recordings_dir must be set")
	}
	info, err := os.Stat(c.Paths.RecordingsDir)
	if err != nil {
		return fmt.Errorf("paths.recordings_dir %q: %w", c.Paths.RecordingsDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.recordings_dir %q is not a directory", c.Paths.RecordingsDir)
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateRecordings() error {
	if c.Recordings.Extension == "." {
		return errors.New("recordings.extension must name a file extension")
	}
	if c.Recordings.MaxConcurrentSends < 1 {
		return errors.New("recordings.max_concurrent_sends must be >= 1")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.Bitrate <= 0 {
		return errors.New("audio.bitrate must be positive")
	}
	if c.Audio.SilenceStopDuration < 0 {
		return errors.New("audio.silence_stop_duration must be >= 0")
	}
	if !strings.HasSuffix(strings.ToLower(c.Audio.SilenceThreshold), "db") {
		return fmt.Errorf("audio.silence_threshold must be expressed in dB, got %q", c.Audio.SilenceThreshold)
	}
	return nil
}

func (c *Config) validateAcknowledgment() error {
	if len(c.Acknowledgment.DoneReactions) == 0 {
		return errors.New("acknowledgment.done_reactions must include at least one glyph")
	}
	if c.Acknowledgment.ConfirmationReaction == "" {
		return errors.New("acknowledgment.confirmation_reaction must be set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
