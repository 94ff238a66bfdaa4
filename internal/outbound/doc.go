// Package outbound delivers recordings that the tracker does not know yet.
//
// Each candidate is converted to Ogg/Opus as soon as the phase starts, while
// uploads pass through a weighted semaphore. Upload slots are handed out in
// filename order, so with a single slot the conversation receives recordings
// sorted by name even though conversions finish in any order.
package outbound
