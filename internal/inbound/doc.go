// Package inbound processes the update stream of the target conversation.
//
// Events are handled strictly in update order. A "done" reaction on a
// delivered voice note deletes the source recording, confirms with a reaction
// and marks the tracked message acknowledged. The cursor only moves past an
// event once it is fully handled, and the first failure ends the phase so
// later events are never processed ahead of an earlier one.
package inbound
