package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)

// Service answers org-scoped capability questions. Actors are opaque
// strings ("user:<id>" or "system"); objects and actions are the
// constants declared by each feature's domain package.
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}
