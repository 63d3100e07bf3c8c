package auth

import (
	"testing"
	"time"
)

const testKey = "test-signing-key"

func TestIssueAndParse(t *testing.T) {
	id := Identity{ID: "stu-42", Name: "Ada Osei", Role: RoleStudent, StudentNumber: "S2026-042"}

	signed, exp, err := Issue(id, "qrattend", testKey, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if signed == "" {
		t.Fatal("expected non-empty token")
	}
	if time.Until(exp) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := Parse(signed, testKey, "qrattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := claims.Identity()
	if got != id {
		t.Errorf("identity: got %+v, want %+v", got, id)
	}
}

func TestParseRejections(t *testing.T) {
	id := Identity{ID: "lec-1", Name: "Dr. Mensah", Role: RoleLecturer}
	signed, _, err := Issue(id, "qrattend", testKey, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	t.Run("wrong key", func(t *testing.T) {
		if _, err := Parse(signed, "other-key", "qrattend"); err == nil {
			t.Error("expected error for wrong signing key")
		}
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		if _, err := Parse(signed, testKey, "someone-else"); err == nil {
			t.Error("expected error for issuer mismatch")
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := Parse("not.a.jwt", testKey, "qrattend"); err == nil {
			t.Error("expected error for garbage token")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		old, _, err := Issue(id, "qrattend", testKey, -time.Minute)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := Parse(old, testKey, "qrattend"); err == nil {
			t.Error("expected error for expired token")
		}
	})
}
