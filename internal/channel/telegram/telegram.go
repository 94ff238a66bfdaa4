package telegram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"voicenotes/internal/channel"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/services"
)

// AllowedUpdates are the only update kinds a pass asks for.
var AllowedUpdates = []string{"message", "message_reaction"}

// Options configures the Bot API client.
type Options struct {
	Token          string
	APIURL         string
	RequestTimeout time.Duration
}

// OptionsFromConfig maps the [telegram] section to client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Token:          cfg.Telegram.Token,
		APIURL:         cfg.Telegram.APIURL,
		RequestTimeout: time.Duration(cfg.Telegram.RequestTimeout) * time.Second,
	}
}

// Session talks to the Bot API through telego.
type Session struct {
	bot     *telego.Bot
	timeout time.Duration
	logger  *slog.Logger
}

// Open builds a Bot API client. No request is made until the first call.
func Open(opts Options, logger *slog.Logger) (*Session, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "telegram", "open", "bot token is empty", nil)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	botOpts := []telego.BotOption{
		telego.WithDiscardLogger(),
		telego.WithHTTPClient(&http.Client{Timeout: opts.RequestTimeout}),
	}
	if api := strings.TrimSpace(opts.APIURL); api != "" {
		botOpts = append(botOpts, telego.WithAPIServer(strings.TrimRight(api, "/")))
	}
	bot, err := telego.NewBot(opts.Token, botOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "telegram", "open", "invalid bot token", err)
	}
	return &Session{
		bot:     bot,
		timeout: opts.RequestTimeout,
		logger:  logging.NewComponentLogger(logger, "telegram"),
	}, nil
}

// NewOpener returns a channel.Opener that builds a fresh Session per pass.
func NewOpener(opts Options, logger *slog.Logger) channel.Opener {
	return channel.OpenerFunc(func(context.Context) (channel.Session, error) {
		return Open(opts, logger)
	})
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Updates fetches pending updates without long polling.
func (s *Session) Updates(ctx context.Context, offset int64, limit int) ([]channel.Event, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	updates, err := s.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset:         int(offset),
		Limit:          limit,
		Timeout:        0,
		AllowedUpdates: AllowedUpdates,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", "getUpdates", "", err)
	}
	events := make([]channel.Event, 0, len(updates))
	for _, update := range updates {
		events = append(events, convertUpdate(update))
	}
	s.logger.Debug("updates fetched",
		logging.Int64("offset", offset),
		logging.Int("count", len(events)),
	)
	return events, nil
}

// SendMessage posts a plain text message.
func (s *Session) SendMessage(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	if _, err := s.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "sendMessage", "", err)
	}
	return nil
}

// SendVoice uploads path as a voice note with the given caption. Durations are
// sent in whole seconds.
func (s *Session) SendVoice(ctx context.Context, chatID int64, path, caption string, duration time.Duration) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		marker := services.ErrTransport
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return 0, services.Wrap(marker, "telegram", "sendVoice", "open voice file", err)
	}
	defer file.Close()

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	msg, err := s.bot.SendVoice(ctx, &telego.SendVoiceParams{
		ChatID:   tu.ID(chatID),
		Voice:    tu.File(file),
		Caption:  caption,
		Duration: int(duration.Round(time.Second) / time.Second),
	})
	if err != nil {
		return 0, services.Wrap(services.ErrTransport, "telegram", "sendVoice", "", err)
	}
	if msg == nil {
		return 0, services.Wrap(services.ErrTransport, "telegram", "sendVoice", "empty response", nil)
	}
	return int64(msg.MessageID), nil
}

// SetReaction replaces the bot's reaction on a message with a single emoji.
func (s *Session) SetReaction(ctx context.Context, chatID, messageID int64, emoji string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	err := s.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    tu.ID(chatID),
		MessageID: int(messageID),
		Reaction:  []telego.ReactionType{&telego.ReactionTypeEmoji{Type: "emoji", Emoji: emoji}},
	})
	if err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "setMessageReaction", "", err)
	}
	return nil
}

// Identity returns the bot's username as reported by getMe.
func (s *Session) Identity(ctx context.Context) (string, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	me, err := s.bot.GetMe(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "telegram", "getMe", "", err)
	}
	return senderName(me), nil
}

// Close releases the session. The Bot API is stateless over HTTP, so there is
// nothing to tear down.
func (s *Session) Close() error {
	return nil
}

func convertUpdate(update telego.Update) channel.Event {
	id := int64(update.UpdateID)
	switch {
	case update.Message != nil:
		msg := update.Message
		return channel.NewMessage{
			ID:        id,
			ChatID:    msg.Chat.ID,
			MessageID: int64(msg.MessageID),
			Text:      msg.Text,
			From:      senderName(msg.From),
		}
	case update.MessageReaction != nil:
		reaction := update.MessageReaction
		old := make(map[string]struct{})
		for _, glyph := range emojis(reaction.OldReaction) {
			old[glyph] = struct{}{}
		}
		var added []string
		for _, glyph := range emojis(reaction.NewReaction) {
			if _, seen := old[glyph]; !seen {
				added = append(added, glyph)
			}
		}
		return channel.ReactionChange{
			ID:        id,
			ChatID:    reaction.Chat.ID,
			MessageID: int64(reaction.MessageID),
			Added:     added,
		}
	default:
		return channel.Unrecognized{ID: id, Description: "update carries neither a message nor a reaction change"}
	}
}

// emojis extracts plain emoji reactions; custom and paid reactions are skipped.
func emojis(reactions []telego.ReactionType) []string {
	out := make([]string, 0, len(reactions))
	for _, reaction := range reactions {
		if emoji, ok := reaction.(*telego.ReactionTypeEmoji); ok && emoji != nil && emoji.Emoji != "" {
			out = append(out, emoji.Emoji)
		}
	}
	return out
}

func senderName(user *telego.User) string {
	if user == nil {
		return ""
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", user.FirstName, user.LastName))
}
