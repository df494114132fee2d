package device

import "time"

// Status is the lifecycle state of a registered device.
type Status string

// Device lifecycle states. A device starts pending, and a dashboard user
// moves it to approved (minting its token) or rejected (revoking any token).
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Info is a registered device and its trust state.
//
// JSON field names match the wire format the Android agent expects.
type Info struct {
	// ID is the opaque server-generated device identifier (8 hex chars).
	ID string `json:"device_id"`

	// Name is the human-readable device name, e.g. "Pixel 7".
	Name string `json:"device_name"`

	// Serial is the optional hardware serial, used to deduplicate
	// re-registrations of the same physical device.
	Serial string `json:"device_serial"`

	Status Status `json:"status"`

	// AuthToken is the bearer token minted on approval (32 hex chars).
	// Empty unless the device is approved.
	AuthToken string `json:"auth_token,omitempty"`

	RegisteredAt time.Time  `json:"registered_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}
