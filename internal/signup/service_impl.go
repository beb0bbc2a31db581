package signup

import (
	"context"
	"strings"

	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
	"github.com/trustcove/trustcove/internal/signup/domain"
)

type service struct {
	authsvc authdomain.Service
	orgsvc  orgdomain.Service
}

func NewService(authsvc authdomain.Service, orgsvc orgdomain.Service) domain.Service {
	return &service{
		authsvc: authsvc,
		orgsvc:  orgsvc,
	}
}

// Signup creates the account, a personal organization owned by it, and a
// live session, in that order. The org name defaults to the display name.
func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	displayName := strings.TrimSpace(req.DisplayName)
	orgName := strings.TrimSpace(req.OrgName)
	if orgName == "" {
		orgName = displayName
	}
	if orgName == "" {
		orgName = strings.Split(strings.TrimSpace(req.Email), "@")[0]
	}
	if orgName == "" {
		return nil, domain.ErrInvalidRequest
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgsvc.Create(ctx, user.ID, orgdomain.CreateOrganizationRequest{
		Name: orgName,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Session:   session.Session,
		RawToken:  session.RawToken,
		ExpiresAt: session.ExpiresAt,
		OrgID:     org.ID,
		UserID:    user.ID.String(),
	}, nil
}
