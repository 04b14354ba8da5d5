package models

import (
	"testing"
	"time"
)

func TestNewCredentialForcesPasswordChange(t *testing.T) {
	c := NewCredential("123456785", "hash")
	if !c.ForcePasswordChange || !c.Active {
		t.Fatalf("expected new credential to be active and force a password change")
	}
	if c.IsLocked(time.Now()) {
		t.Fatalf("new credential should be unlocked")
	}
}

func TestCredentialLockout(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewCredential("123456785", "hash")
	for i := 1; i < MaxFailedAttempts; i++ {
		if c.RegisterFailure(now) {
			t.Fatalf("locked too early after %d failures", i)
		}
	}
	if !c.RegisterFailure(now) {
		t.Fatalf("expected lock after %d failures", MaxFailedAttempts)
	}
	if !c.IsLocked(now.Add(29 * time.Minute)) {
		t.Fatalf("expected credential to stay locked inside the window")
	}
	if c.IsLocked(now.Add(LockoutDuration)) {
		t.Fatalf("expected lock to lapse after %s", LockoutDuration)
	}

	later := now.Add(time.Hour)
	if c.RegisterFailure(later) {
		t.Fatalf("a failure after the lock lapsed should start a new count")
	}
	if c.FailedAttempts != 1 {
		t.Fatalf("expected counter reset to 1, got %d", c.FailedAttempts)
	}
}

func TestCredentialSuccessResets(t *testing.T) {
	now := time.Now().UTC()
	c := NewCredential("123456785", "hash")
	for i := 0; i < MaxFailedAttempts; i++ {
		c.RegisterFailure(now)
	}
	c.RegisterSuccess(now)
	if c.FailedAttempts != 0 || c.LockedUntil != nil {
		t.Fatalf("expected success to clear failures and lock")
	}
	if c.LastAccess == nil || !c.LastAccess.Equal(now) {
		t.Fatalf("expected last access to be recorded")
	}
}

func TestCredentialSessionsEvictOldest(t *testing.T) {
	c := NewCredential("123456785", "hash")
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		c.AddSession(Session{ID: id})
	}
	if len(c.Sessions) != MaxSessions {
		t.Fatalf("expected %d sessions, got %d", MaxSessions, len(c.Sessions))
	}
	if c.Sessions[0].ID != "c" || c.Sessions[2].ID != "e" {
		t.Fatalf("unexpected sessions kept: %+v", c.Sessions)
	}
	c.RemoveSession("d")
	if len(c.Sessions) != 2 || c.Sessions[1].ID != "e" {
		t.Fatalf("unexpected sessions after removal: %+v", c.Sessions)
	}
}

func TestCredentialRecoveryToken(t *testing.T) {
	now := time.Now().UTC()
	c := NewCredential("123456785", "hash")
	token, err := c.IssueRecoveryToken(now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	if !c.RecoveryTokenValid(token, now.Add(23*time.Hour)) {
		t.Fatalf("expected token to be valid within 24h")
	}
	if c.RecoveryTokenValid(token, now.Add(RecoveryTokenTTL)) {
		t.Fatalf("expected token to expire")
	}
	if c.RecoveryTokenValid("other", now) {
		t.Fatalf("expected mismatched token to be rejected")
	}
	c.ClearRecoveryToken()
	if c.RecoveryTokenValid(token, now) {
		t.Fatalf("expected cleared token to be rejected")
	}
}

func TestSessionsValueScan(t *testing.T) {
	in := Sessions{{ID: "x", IP: "10.0.0.1"}}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out Sessions
	if err := out.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(out) != 1 || out[0].IP != "10.0.0.1" {
		t.Fatalf("unexpected sessions %+v", out)
	}
}
