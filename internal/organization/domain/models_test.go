package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw     string
		want    Role
		wantErr bool
	}{
		{"OWNER", RoleOwner, false},
		{"ADMIN", RoleAdmin, false},
		{"MEMBER", RoleMember, false},
		{"owner", "", true},
		{"SUPERADMIN", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		role, err := ParseRole(tc.raw)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRole, "raw=%q", tc.raw)
			continue
		}
		assert.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, role)
	}
}

func TestInvitationPredicates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	accepted := now.Add(-time.Hour)

	cases := []struct {
		name        string
		invitation  Invitation
		wantExpired bool
		wantPending bool
	}{
		{
			name:        "fresh",
			invitation:  Invitation{ExpiresAt: now.Add(time.Hour)},
			wantExpired: false,
			wantPending: true,
		},
		{
			name:        "expired",
			invitation:  Invitation{ExpiresAt: now.Add(-time.Minute)},
			wantExpired: true,
			wantPending: false,
		},
		{
			// Expiry is now.After(expires_at), so the boundary instant
			// itself still counts as valid.
			name:        "exactly at expiry",
			invitation:  Invitation{ExpiresAt: now},
			wantExpired: false,
			wantPending: true,
		},
		{
			name:        "accepted",
			invitation:  Invitation{ExpiresAt: now.Add(time.Hour), AcceptedAt: &accepted},
			wantExpired: false,
			wantPending: false,
		},
		{
			name:        "accepted and expired",
			invitation:  Invitation{ExpiresAt: now.Add(-time.Hour), AcceptedAt: &accepted},
			wantExpired: true,
			wantPending: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantExpired, tc.invitation.IsExpired(now))
			assert.Equal(t, tc.wantPending, tc.invitation.IsPending(now))
		})
	}
}
