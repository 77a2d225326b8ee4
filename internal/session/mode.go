package session

import (
	"errors"
	"strings"
)

// LoginMode tracks which credentials the login form requires. The default
// mode is the beta path (email + beta code); toggling switches to the
// admin path (email + password) and back. Toggling never touches the
// current user.
type LoginMode struct {
	admin bool
}

// Admin reports whether the mode is currently the admin-credential path.
func (m *LoginMode) Admin() bool { return m.admin }

// Toggle flips between beta and admin login modes.
func (m *LoginMode) Toggle() { m.admin = !m.admin }

// Required returns the required-field set for the current mode. The beta
// and admin paths are mutually exclusive: in admin mode the beta code is
// not required, in beta mode the password is not required.
func (m *LoginMode) Required() map[string]bool {
	if m.admin {
		return map[string]bool{"email": true, "password": true, "beta_code": false}
	}
	return map[string]bool{"email": true, "beta_code": true, "password": false}
}

// Credentials is the raw login form input.
type Credentials struct {
	Email    string
	BetaCode string
	Password string
}

// Check validates the form against the current mode's required fields.
func (m *LoginMode) Check(c Credentials) error {
	required := m.Required()
	values := map[string]string{
		"email":     strings.TrimSpace(c.Email),
		"beta_code": strings.TrimSpace(c.BetaCode),
		"password":  c.Password,
	}
	var missing []string
	for _, field := range []string{"email", "beta_code", "password"} {
		if required[field] && values[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}
