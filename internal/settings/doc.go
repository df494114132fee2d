// Package settings delivers server-controlled configuration to polling
// devices.
//
// The blob carries a revision counter: a device polls with its last-seen
// revision and only downloads the blob when something actually changed.
// Token delivery to freshly approved devices piggybacks on this poll, but
// is handled at the HTTP layer (it must work even when the settings blob
// itself is unchanged, because approval does not bump the revision).
package settings
