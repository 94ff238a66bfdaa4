// Package config loads, normalizes, and validates voicenotes configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves the bot token from the config
// file, the TELEGRAM_BOT_TOKEN environment variable, or a JSON token file. The
// Config type centralizes every knob a sync pass and the CLI need.
//
// A missing chat_id is not an error: it selects registration mode, where the
// pass only logs the chat ids of incoming messages so the operator can fill
// it in.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
