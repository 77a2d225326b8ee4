package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/teenagetech/beta/internal/models"
)

type fakeAdminLookup struct {
	admins map[string]*models.Admin
	err    error
}

func (f *fakeAdminLookup) GetAdminByEmail(_ context.Context, email string) (*models.Admin, error) {
	if f.err != nil {
		return nil, f.err
	}
	// A case-folding store must still not grant authority; the policy
	// compares the stored email exactly.
	for _, a := range f.admins {
		if equalFold(a.Email, email) {
			return a, nil
		}
	}
	return nil, errors.New("not found")
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func TestIsAdminExactMatch(t *testing.T) {
	lookup := &fakeAdminLookup{admins: map[string]*models.Admin{
		"owen@owen.uno": {Email: "owen@owen.uno"},
	}}
	policy := NewPolicy(lookup, nil)
	ctx := context.Background()

	if !policy.IsAdmin(ctx, "owen@owen.uno") {
		t.Fatal("exact admin email must be granted")
	}
	for _, email := range []string{"Owen@owen.uno", "OWEN@OWEN.UNO", "owen@owen.uno ", " owen@owen.uno", "sam@example.com", ""} {
		if policy.IsAdmin(ctx, email) {
			t.Errorf("IsAdmin(%q) = true, want false", email)
		}
	}
}

func TestIsAdminLookupFailureDenies(t *testing.T) {
	policy := NewPolicy(&fakeAdminLookup{err: errors.New("db down")}, nil)
	if policy.IsAdmin(context.Background(), "owen@owen.uno") {
		t.Fatal("lookup failures must deny, not grant")
	}
}
