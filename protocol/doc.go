// Package protocol implements the in-process message fabric used by
// the leader and its sub-agents.
//
// # Overview
//
// Agents exchange immutable Envelopes through per-agent FIFO mailboxes
// owned by a Fabric. The fabric deduplicates deliveries by message id,
// tracks heartbeats, keeps an append-only dead-letter sink for failed
// envelopes, and maintains per-message retry counters. Sender and
// Receiver are typed facades over the fabric for the method vocabulary
// (Task, Result, Progress, Heartbeat, Ack, TokenRequest, TokenResponse).
//
// # Delivery model
//
// Transport is intra-process only: a mailbox is a buffered channel and
// "protocol" means the envelope shape and method vocabulary, not bytes
// on a wire. Sends may be concurrent; each mailbox is consumed by a
// single logical reader. Every receive is bounded by a timeout, so no
// agent ever blocks indefinitely.
//
// # Acknowledgment
//
// Receiving is a pure read. Acknowledgment is an explicit separate
// step (Receiver.MaybeAck) so there is no hidden I/O inside the read
// path; MaybeAck never acks an Ack, which would cycle forever.
package protocol
