// Package telegram implements channel.Session on the Telegram Bot API using
// telego.
//
// Updates are fetched with short polling (timeout 0) and restricted to
// messages and reaction changes. A reaction update becomes a
// channel.ReactionChange carrying only the emoji that were added, so removing
// a reaction never counts as an acknowledgment. Every request is bounded by
// the configured request timeout.
package telegram
