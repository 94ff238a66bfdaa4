// Package channel defines the contract between the sync pass and the
// messaging service: a closed set of inbound event types and the Session
// operations a pass needs. The Telegram implementation lives in the telegram
// subpackage; tests use the fake in internal/testsupport.
package channel
