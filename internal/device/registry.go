package device

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ID and token sizes in random bytes (hex doubles the length on the wire).
const (
	deviceIDBytes = 4  // 8 hex chars
	tokenBytes    = 16 // 32 hex chars, 128 bits of entropy
)

// Registry is the in-memory store of devices and their auth tokens.
//
// It owns the device trust lifecycle: a device registers as pending, a
// dashboard user approves it (minting a bearer token) or rejects it
// (revoking the token). Tokens validate in O(1) via a reverse map.
//
// State is process-lifetime only. Losing registrations on restart is
// acceptable for a development/testing tool; the device simply re-registers
// and is re-approved.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Info
	tokens  map[string]string // token -> device ID reverse lookup

	// everApproved latches true the first time any device is approved.
	// Auth enforcement stays on even if that device is later rejected;
	// rejecting the last trusted device must not silently reopen the
	// server to unauthenticated traffic. Only Reset clears the latch.
	everApproved bool

	// staticToken is an optional pre-shared token from config/environment.
	// When set, auth is enforced from startup and this token always
	// validates, independent of device approvals.
	staticToken string

	logger Logger
}

// NewRegistry creates a device registry.
//
// staticToken may be empty; when non-empty it acts as a pre-shared
// credential that bypasses the approval flow (useful for CI).
func NewRegistry(staticToken string) *Registry {
	return &Registry{
		devices:     make(map[string]*Info),
		tokens:      make(map[string]string),
		staticToken: staticToken,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register creates a new pending device, or returns the existing record
// when the serial matches a previously registered device.
//
// Registration by serial is idempotent: the existing record is returned
// unchanged, preserving its status and token. Registration never fails.
func (r *Registry) Register(name, serial string) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if serial != "" {
		for _, d := range r.devices {
			if d.Serial == serial {
				r.logger.Info("device re-registered", "device_id", d.ID, "name", name)
				return copyInfo(d)
			}
		}
	}

	d := &Info{
		ID:           randomHex(deviceIDBytes),
		Name:         name,
		Serial:       serial,
		Status:       StatusPending,
		RegisteredAt: time.Now().UTC(),
	}
	r.devices[d.ID] = d

	r.logger.Info("device registered", "device_id", d.ID, "name", name)
	return copyInfo(d)
}

// Approve marks a device approved and mints its auth token.
//
// Approving an already-approved device is idempotent: the existing token is
// returned unchanged. The idempotency check and the mint happen under the
// same lock, so concurrent approvals of one device cannot race to two tokens.
//
// Returns ErrNotFound if the device does not exist.
func (r *Registry) Approve(id string) (*Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrNotFound
	}

	if d.Status == StatusApproved && d.AuthToken != "" {
		return copyInfo(d), nil
	}

	token := randomHex(tokenBytes)
	now := time.Now().UTC()
	d.Status = StatusApproved
	d.AuthToken = token
	d.ApprovedAt = &now
	r.tokens[token] = d.ID
	r.everApproved = true

	r.logger.Info("device approved", "device_id", d.ID, "name", d.Name)
	return copyInfo(d), nil
}

// Reject marks a device rejected and revokes its token if one was issued.
// The token stops validating immediately.
//
// Returns ErrNotFound if the device does not exist.
func (r *Registry) Reject(id string) (*Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrNotFound
	}

	if d.AuthToken != "" {
		delete(r.tokens, d.AuthToken)
	}
	d.Status = StatusRejected
	d.AuthToken = ""

	r.logger.Info("device rejected", "device_id", d.ID, "name", d.Name)
	return copyInfo(d), nil
}

// ValidateToken reports whether a token is acceptable: either the static
// pre-shared token or one belonging to a currently approved device.
// O(1) map lookup, not a scan.
func (r *Registry) ValidateToken(token string) bool {
	if token == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.staticToken != "" && token == r.staticToken {
		return true
	}
	_, ok := r.tokens[token]
	return ok
}

// AuthEnabled reports whether token enforcement is active.
//
// The server starts fully open and locks down the moment any device is
// trusted: enforcement is derived from registry state (static token
// configured, or a device has ever been approved), not from a config
// switch, so it can never drift out of sync with reality. Approving the
// first device locks out ALL unauthenticated mutating traffic, not just
// that device's.
func (r *Registry) AuthEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.staticToken != "" || r.everApproved
}

// Get returns a device by ID, or ErrNotFound.
func (r *Registry) Get(id string) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyInfo(d), nil
}

// GetByToken returns the device that owns a token, or ErrNotFound.
// The static token maps to no device.
func (r *Registry) GetByToken(token string) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return copyInfo(r.devices[id]), nil
}

// TokenForDevice returns the auth token for an approved device, or ""
// if the device is unknown or not approved.
func (r *Registry) TokenForDevice(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok || d.Status != StatusApproved {
		return ""
	}
	return d.AuthToken
}

// Pending returns all devices awaiting approval.
func (r *Registry) Pending() []Info {
	return r.listByStatus(StatusPending)
}

// Approved returns all approved devices.
func (r *Registry) Approved() []Info {
	return r.listByStatus(StatusApproved)
}

// All returns every registered device.
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Info, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *copyInfo(d))
	}
	return devices
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Reset clears all devices, tokens, and the enforcement latch.
// Used for test isolation and explicit admin reset.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]*Info)
	r.tokens = make(map[string]string)
	r.everApproved = false

	r.logger.Info("device registry reset")
}

func (r *Registry) listByStatus(status Status) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var devices []Info
	for _, d := range r.devices {
		if d.Status == status {
			devices = append(devices, *copyInfo(d))
		}
	}
	return devices
}

// copyInfo returns an independent copy so callers cannot mutate registry state.
func copyInfo(d *Info) *Info {
	cpy := *d
	if d.ApprovedAt != nil {
		at := *d.ApprovedAt
		cpy.ApprovedAt = &at
	}
	return &cpy
}

// randomHex returns n random bytes hex-encoded (2n chars).
func randomHex(n int) string {
	b := make([]byte, n)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
