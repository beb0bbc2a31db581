package authorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
)

type capabilityChecker struct {
	authz Service
}

// NewCapabilityChecker adapts the casbin-backed authorizer to the
// capability predicate the membership services depend on.
func NewCapabilityChecker(authz Service) orgdomain.CapabilityChecker {
	return &capabilityChecker{authz: authz}
}

func (c *capabilityChecker) Require(ctx context.Context, userID snowflake.ID, orgID snowflake.ID, object string, action string) error {
	if userID == 0 {
		return orgdomain.ErrForbidden
	}
	err := c.authz.Authorize(ctx, fmt.Sprintf("user:%s", userID.String()), orgID.String(), object, action)
	if errors.Is(err, ErrForbidden) {
		return orgdomain.ErrForbidden
	}
	return err
}
