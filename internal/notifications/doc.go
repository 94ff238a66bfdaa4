// Package notifications publishes pass outcomes to ntfy.
//
// The topic URL comes from notifications.ntfy_topic; without it every call is
// a no-op. Failure notifications are on by default, while clean passes only
// notify when notifications.deliveries is enabled.
package notifications
