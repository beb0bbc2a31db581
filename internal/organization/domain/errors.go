package domain

import "errors"

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrAlreadyMember        = errors.New("already a member")
	ErrLastOwner            = errors.New("organization must keep at least one owner")
	ErrForbidden            = errors.New("forbidden")
)
