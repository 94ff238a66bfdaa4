// Command voicenotes syncs a directory of voice recordings with a Telegram
// conversation.
//
// Each `voicenotes sync` invocation is one pass: reactions on previously sent
// notes are processed first (an acknowledged note's recording is deleted),
// then every recording not yet tracked is converted to Ogg/Opus and sent as a
// voice message. Run it from cron or a systemd timer; overlapping passes skip
// instead of racing on the state file.
//
// Other commands:
//
//	voicenotes status           cursor, counts and notes awaiting acknowledgment
//	voicenotes check            directory, ffmpeg and bot token checks
//	voicenotes logs [-f]        print or follow the newest pass log
//	voicenotes config init      write a sample config.toml
//	voicenotes config validate  load and validate the configuration
//	voicenotes test-notify      publish a test ntfy notification
package main
