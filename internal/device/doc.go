// Package device manages the trust lifecycle of remote test devices.
//
// A device registers itself and appears as pending on the dashboard. A
// human approves it, which mints a bearer token; the device discovers the
// token through its settings poll and attaches it as X-Agent-Token on every
// mutating request from then on. Rejecting a device revokes its token
// immediately.
//
// The registry deliberately starts with auth disabled so local development
// has zero friction. Approving the first device (or configuring a static
// token) switches enforcement on for the whole server. See
// Registry.AuthEnabled for the exact semantics.
package device
