package config

const (
	defaultRecordingsDir         = "~/recordings"
	defaultStateDir              = "~/.local/state/voicenotes"
	defaultLogDir                = "~/.local/share/voicenotes/logs"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultRecordingExtension    = ".m4a"
	defaultMaxConcurrentSends    = 1
	defaultTelegramTimeout       = 60
	defaultAudioBitrate          = 128 * 1024
	defaultSilenceStopDuration   = 1.0
	defaultSilenceThreshold      = "-50dB"
	defaultConfirmationReaction  = "🫡"
	defaultGreeting              = "Hi!"
	defaultNotifyRequestTimeout  = 10
	defaultTelegramTokenEnv      = "TELEGRAM_BOT_TOKEN"
	defaultTelegramTokenFileJSON = "api_token"
)

var defaultDoneReactions = []string{"👍", "👌", "💯"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Telegram: Telegram{
			RequestTimeout: defaultTelegramTimeout,
		},
		Paths: Paths{
			RecordingsDir: defaultRecordingsDir,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
		},
		Recordings: Recordings{
			Extension:          defaultRecordingExtension,
			MaxConcurrentSends: defaultMaxConcurrentSends,
		},
		Audio: Audio{
			FFmpegBinary:        "ffmpeg",
			FFprobeBinary:       "ffprobe",
			Bitrate:             defaultAudioBitrate,
			SilenceStopDuration: defaultSilenceStopDuration,
			SilenceThreshold:    defaultSilenceThreshold,
		},
		Acknowledgment: Acknowledgment{
			DoneReactions:        append([]string(nil), defaultDoneReactions...),
			ConfirmationReaction: defaultConfirmationReaction,
			Greeting:             defaultGreeting,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Failures:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
