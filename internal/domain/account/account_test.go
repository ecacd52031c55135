package account

import (
	"testing"
	"time"
)

func TestCreateAccount(t *testing.T) {
	now := func() time.Time { return time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC) }
	idGen := func() (string, error) { return "acct-1", nil }

	a, err := Create(CreateInput{Email: "  buyer@example.com ", DisplayName: "Buyer"}, now, idGen)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.Email != "buyer@example.com" {
		t.Fatalf("email = %q, want trimmed", a.Email)
	}
	if a.Status != StatusCreated {
		t.Fatalf("status = %q, want %q", a.Status, StatusCreated)
	}
	if !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Fatal("expected created and updated timestamps to match")
	}
}

func TestCreateAccountRequiresEmail(t *testing.T) {
	if _, err := Create(CreateInput{}, nil, nil); err == nil {
		t.Fatal("expected error for missing email")
	}
}
