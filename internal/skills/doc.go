// Package skills relays remote skill commands between the server and the
// device agent.
//
// The device cannot be pushed to, only polled: a server-side caller queues
// a command with Execute and blocks; the device discovers it via Drain,
// performs the action (a gesture, a snapshot, an utterance collection),
// and posts the outcome via Report, which unblocks the caller.
//
// Delivery is at-most-once per poll cycle. A drained command that the
// device never reports on simply times out on the caller's side; it is not
// redelivered.
package skills
