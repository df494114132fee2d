package device

import (
	"errors"
	"regexp"
	"sync"
	"testing"
)

var (
	deviceIDPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)
	tokenPattern    = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

func TestRegister(t *testing.T) {
	r := NewRegistry("")

	d := r.Register("Pixel 7", "ABCD1234")

	if !deviceIDPattern.MatchString(d.ID) {
		t.Errorf("device ID %q is not 8 hex chars", d.ID)
	}
	if d.Status != StatusPending {
		t.Errorf("status = %q, want pending", d.Status)
	}
	if d.AuthToken != "" {
		t.Errorf("new device should have no token, got %q", d.AuthToken)
	}
	if d.RegisteredAt.IsZero() {
		t.Error("RegisteredAt not set")
	}
}

func TestRegisterIdempotentBySerial(t *testing.T) {
	r := NewRegistry("")

	first := r.Register("Pixel 7", "ABCD1234")
	second := r.Register("Pixel 7 (renamed)", "ABCD1234")

	if first.ID != second.ID {
		t.Errorf("re-registration returned new ID %q, want %q", second.ID, first.ID)
	}
	if r.Count() != 1 {
		t.Errorf("device count = %d, want 1", r.Count())
	}

	// Re-registration preserves status and token
	if _, err := r.Approve(first.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	third := r.Register("Pixel 7", "ABCD1234")
	if third.Status != StatusApproved {
		t.Errorf("re-registration lost approved status, got %q", third.Status)
	}
	if third.AuthToken == "" {
		t.Error("re-registration lost token")
	}
}

func TestRegisterEmptySerialNeverDeduplicates(t *testing.T) {
	r := NewRegistry("")

	a := r.Register("Emulator", "")
	b := r.Register("Emulator", "")

	if a.ID == b.ID {
		t.Error("devices with empty serial should get distinct records")
	}
	if r.Count() != 2 {
		t.Errorf("device count = %d, want 2", r.Count())
	}
}

func TestApprove(t *testing.T) {
	r := NewRegistry("")
	d := r.Register("Pixel 7", "ABCD1234")

	approved, err := r.Approve(d.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if approved.Status != StatusApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if !tokenPattern.MatchString(approved.AuthToken) {
		t.Errorf("token %q is not 32 hex chars", approved.AuthToken)
	}
	if approved.ApprovedAt == nil {
		t.Error("ApprovedAt not set")
	}
	if !r.ValidateToken(approved.AuthToken) {
		t.Error("freshly minted token does not validate")
	}
}

func TestApproveIdempotent(t *testing.T) {
	r := NewRegistry("")
	d := r.Register("Pixel 7", "ABCD1234")

	first, err := r.Approve(d.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	second, err := r.Approve(d.ID)
	if err != nil {
		t.Fatalf("second Approve: %v", err)
	}

	if first.AuthToken != second.AuthToken {
		t.Errorf("repeated approval changed token: %q -> %q", first.AuthToken, second.AuthToken)
	}
}

func TestApproveNotFound(t *testing.T) {
	r := NewRegistry("")
	if _, err := r.Approve("deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Approve(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRejectRevokesToken(t *testing.T) {
	r := NewRegistry("")
	d := r.Register("Pixel 7", "ABCD1234")

	approved, err := r.Approve(d.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	token := approved.AuthToken

	rejected, err := r.Reject(d.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if rejected.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if rejected.AuthToken != "" {
		t.Errorf("rejected device still carries token %q", rejected.AuthToken)
	}
	if r.ValidateToken(token) {
		t.Error("revoked token still validates")
	}
}

func TestRejectNotFound(t *testing.T) {
	r := NewRegistry("")
	if _, err := r.Reject("deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reject(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestAuthEnabledLatch(t *testing.T) {
	r := NewRegistry("")

	if r.AuthEnabled() {
		t.Error("auth should start disabled")
	}

	d := r.Register("Pixel 7", "ABCD1234")
	if r.AuthEnabled() {
		t.Error("registration alone should not enable auth")
	}

	if _, err := r.Approve(d.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !r.AuthEnabled() {
		t.Error("auth should be enabled after first approval")
	}

	// Rejecting the only approved device does not reopen the server.
	if _, err := r.Reject(d.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if !r.AuthEnabled() {
		t.Error("auth should stay enabled after the approved device is rejected")
	}

	r.Reset()
	if r.AuthEnabled() {
		t.Error("Reset should clear the enforcement latch")
	}
}

func TestStaticToken(t *testing.T) {
	r := NewRegistry("presharedsecret")

	if !r.AuthEnabled() {
		t.Error("static token should enable auth from startup")
	}
	if !r.ValidateToken("presharedsecret") {
		t.Error("static token should validate")
	}
	if r.ValidateToken("something-else") {
		t.Error("unknown token should not validate")
	}
	if r.ValidateToken("") {
		t.Error("empty token should never validate")
	}
}

func TestQueries(t *testing.T) {
	r := NewRegistry("")

	a := r.Register("Pixel 7", "AAAA")
	b := r.Register("Galaxy S24", "BBBB")
	r.Register("Emulator", "")

	if _, err := r.Approve(a.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := r.Reject(b.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if got := len(r.Pending()); got != 1 {
		t.Errorf("Pending() len = %d, want 1", got)
	}
	if got := len(r.Approved()); got != 1 {
		t.Errorf("Approved() len = %d, want 1", got)
	}
	if got := len(r.All()); got != 3 {
		t.Errorf("All() len = %d, want 3", got)
	}

	token := r.TokenForDevice(a.ID)
	if token == "" {
		t.Fatal("TokenForDevice returned empty for approved device")
	}
	byToken, err := r.GetByToken(token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if byToken.ID != a.ID {
		t.Errorf("GetByToken returned device %q, want %q", byToken.ID, a.ID)
	}

	if tok := r.TokenForDevice(b.ID); tok != "" {
		t.Errorf("TokenForDevice for rejected device = %q, want empty", tok)
	}
	if _, err := r.GetByToken("ffffffffffffffffffffffffffffffff"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByToken(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestReturnedInfoIsACopy(t *testing.T) {
	r := NewRegistry("")
	d := r.Register("Pixel 7", "ABCD1234")

	d.Status = StatusApproved
	d.AuthToken = "forged"

	stored, err := r.Get(d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusPending || stored.AuthToken != "" {
		t.Error("mutating a returned Info leaked into registry state")
	}
}

func TestConcurrentApproveSameDevice(t *testing.T) {
	r := NewRegistry("")
	d := r.Register("Pixel 7", "ABCD1234")

	const goroutines = 16
	tokens := make([]string, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			info, err := r.Approve(d.ID)
			if err != nil {
				t.Errorf("Approve: %v", err)
				return
			}
			tokens[i] = info.AuthToken
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("concurrent approvals minted different tokens: %q vs %q", tokens[0], tokens[i])
		}
	}
}
