package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	invitationdomain "github.com/trustcove/trustcove/internal/invitation/domain"
	"github.com/trustcove/trustcove/internal/observability/logger"
	"go.uber.org/zap"
)

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type acceptInvitationRequest struct {
	Name                 string `json:"name"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Server) CreateOrganizationInvitation(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID := strings.TrimSpace(c.Param("id"))

	if s.inviteLimiter != nil && s.inviteLimiter.Enabled() {
		allowed, err := s.inviteLimiter.AllowOrg(c.Request.Context(), orgID)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("invite org rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			s.denyInviteRateLimit(c, orgID, rateLimitReasonOrgRate)
			return
		}
	}

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invitationSvc.Create(c.Request.Context(), userID, orgID, invitationdomain.CreateRequest{
		Email: strings.TrimSpace(req.Email),
		Role:  strings.TrimSpace(req.Role),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordInvitationCreated(c.Request.Context(), resp.OrgID)
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListOrganizationInvitations(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.invitationSvc.ListPending(c.Request.Context(), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) RevokeOrganizationInvitation(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	err := s.invitationSvc.Revoke(c.Request.Context(), userID, strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("inviteId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ResolveInvitation inspects a token and tells the caller what to do next:
// sign up, log in, or accept directly. Unknown and already-accepted tokens
// are indistinguishable by design.
func (s *Server) ResolveInvitation(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invitationdomain.ErrNotFound)
		return
	}

	resolution, err := s.invitationSvc.Resolve(c.Request.Context(), token, s.viewerFromSession(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolution)
}

// AcceptInvitation consumes a token. A caller with a valid session accepts
// as themselves; an unauthenticated caller supplies name and password and
// gets an account created from the invitation's email.
func (s *Server) AcceptInvitation(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invitationdomain.ErrNotFound)
		return
	}

	ctx := c.Request.Context()

	// Serialize concurrent accepts for the same token across instances. The
	// row lock inside the transaction is the real guarantee; this just keeps
	// double-submits from burning a transaction each.
	if s.inviteLimiter != nil && s.inviteLimiter.Enabled() {
		lockToken, acquired, err := s.inviteLimiter.TryLockAccept(ctx, token)
		if err != nil {
			logger.FromContext(ctx).Warn("invite accept lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !acquired {
			s.denyInviteRateLimit(c, "", rateLimitReasonAcceptConcurrency)
			return
		}
		defer func() {
			if err := s.inviteLimiter.ReleaseAccept(ctx, token, lockToken); err != nil {
				logger.FromContext(ctx).Warn("invite accept unlock failed", zap.Error(err))
			}
		}()
	}

	if viewer := s.viewerFromSession(c); viewer != nil {
		result, err := s.invitationSvc.Accept(ctx, token, viewer)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordInvitationAccepted(ctx, result.OrgID, "accept_as_self")
		}
		c.JSON(http.StatusOK, result)
		return
	}

	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	password := strings.TrimSpace(req.Password)
	if password == "" {
		// Existing-user path without a session: log in first.
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}
	if req.PasswordConfirmation == "" {
		AbortWithError(c, newValidationError("password_confirmation", "required", "password confirmation is required"))
		return
	}
	if req.PasswordConfirmation != req.Password {
		AbortWithError(c, newValidationError("password_confirmation", "password_mismatch", "passwords do not match"))
		return
	}

	result, err := s.invitationSvc.SignupAndAccept(ctx, invitationdomain.SignupRequest{
		Token:       token,
		Password:    req.Password,
		DisplayName: strings.TrimSpace(req.Name),
		UserAgent:   c.Request.UserAgent(),
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Login != nil && result.Login.RawToken != "" {
		s.sessions.Set(c, result.Login.RawToken, result.Login.ExpiresAt)
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordSignup(ctx, "invitation")
		if result.Membership != nil {
			s.obsMetrics.RecordInvitationAccepted(ctx, result.Membership.OrgID, "signup")
		}
	}

	c.JSON(http.StatusOK, result.Membership)
}

// viewerFromSession returns the authenticated user, or nil when the request
// carries no usable session. Invitation endpoints treat a broken session the
// same as no session.
func (s *Server) viewerFromSession(c *gin.Context) *authdomain.User {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		return nil
	}
	session, err := s.authsvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	user, err := s.authsvc.FindUserByID(c.Request.Context(), session.UserID)
	if err != nil {
		return nil
	}
	return user
}
