package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	invitationdomain "github.com/trustcove/trustcove/internal/invitation/domain"
	organizationdomain "github.com/trustcove/trustcove/internal/organization/domain"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
		{"validation", newValidationError("email", "invalid_email", "invalid value"), http.StatusBadRequest, "validation_error"},
		{"weak password", authdomain.ErrWeakPassword, http.StatusBadRequest, "validation_error"},
		{"invalid role", organizationdomain.ErrInvalidRole, http.StatusBadRequest, "validation_error"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"bad credentials", authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"expired session", authdomain.ErrSessionExpired, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", organizationdomain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"wrong invitee", invitationdomain.ErrEmailMismatch, http.StatusForbidden, "forbidden"},
		{"duplicate member", organizationdomain.ErrAlreadyMember, http.StatusConflict, "conflict"},
		{"duplicate user", authdomain.ErrUserExists, http.StatusConflict, "conflict"},
		{"last owner", organizationdomain.ErrLastOwner, http.StatusConflict, "conflict"},
		{"expired invitation", invitationdomain.ErrExpired, http.StatusGone, "gone"},
		{"unknown invitation", invitationdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unknown org", organizationdomain.ErrOrganizationNotFound, http.StatusNotFound, "not_found"},
		{"unknown membership", organizationdomain.ErrMembershipNotFound, http.StatusNotFound, "not_found"},
		{"unknown user", authdomain.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"missing row", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"rate limited", ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests"},
		{"backend down", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}

func TestMapErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("accept invitation: %w", invitationdomain.ErrExpired)
	status, payload := mapError(wrapped)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "gone", payload.Type)
}

func TestMapErrorLastOwnerMessage(t *testing.T) {
	_, payload := mapError(organizationdomain.ErrLastOwner)
	assert.Equal(t, "organization must keep at least one owner", payload.Message)
}

func TestClassifyErrorForLog(t *testing.T) {
	class, kind := classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal", class)
	assert.Equal(t, "internal_error", kind)

	class, kind = classifyErrorForLog(invitationdomain.ErrNotFound)
	assert.Equal(t, "client", class)
	assert.Equal(t, "not_found", kind)

	class, kind = classifyErrorForLog(nil)
	assert.Empty(t, class)
	assert.Empty(t, kind)
}
