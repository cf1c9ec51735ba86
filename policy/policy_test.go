package policy

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseExpirationMode(t *testing.T) {
	for in, want := range map[string]ExpirationMode{
		"Absolute": Absolute,
		"absolute": Absolute,
		"SLIDING":  Sliding,
		" sliding": Sliding,
	} {
		got, err := ParseExpirationMode(in)
		if err != nil {
			t.Errorf("ParseExpirationMode(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseExpirationMode(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseExpirationMode("weekly"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(Sliding, 5*time.Minute).
		WithSaltKey("tenant-1").
		WithDependencies("Users", "Orders", "Users")

	p := b.Build()

	if p.Mode() != Sliding || p.Timeout() != 5*time.Minute || p.SaltKey() != "tenant-1" {
		t.Errorf("unexpected policy: %+v", p)
	}
	if diff := cmp.Diff([]string{"Users", "Orders"}, p.Dependencies()); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}

	// Mutating the builder after Build must not leak into the policy.
	b.WithDependencies("Products").WithTimeout(time.Hour)
	if diff := cmp.Diff([]string{"Users", "Orders"}, p.Dependencies()); diff != "" {
		t.Errorf("policy changed after builder mutation (-want +got):\n%s", diff)
	}
	if p.Timeout() != 5*time.Minute {
		t.Errorf("timeout changed after builder mutation: %v", p.Timeout())
	}
}

func TestPolicy_DependenciesReturnsCopy(t *testing.T) {
	p := NewBuilder(Absolute, time.Minute).WithDependencies("Users").Build()

	deps := p.Dependencies()
	deps[0] = "mutated"

	if got := p.Dependencies()[0]; got != "Users" {
		t.Errorf("dependency changed through returned slice: %q", got)
	}
}
