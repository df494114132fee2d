// Package discovery advertises the server over mDNS/Bonjour as
// _wonderback._tcp, letting agents on the local network discover it
// without typing an address.
package discovery
