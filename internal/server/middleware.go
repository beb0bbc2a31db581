package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/trustcove/trustcove/internal/observability/context"
	"github.com/trustcove/trustcove/internal/orgcontext"
	organizationdomain "github.com/trustcove/trustcove/internal/organization/domain"
)

const (
	HeaderOrg        = "X-Org-ID"
	contextUserIDKey = "user_id"
)

// WebAuthRequired authenticates the session cookie and stashes the user id
// for downstream handlers.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), "user", session.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, session.UserID.String())
		c.Next()
	}
}

// OrgContext resolves the organization from the path and injects it into the
// request context. Membership and capability checks happen in the services;
// this only establishes which organization the request is about.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawOrgID := strings.TrimSpace(c.Param("id"))
		if rawOrgID == "" {
			rawOrgID = strings.TrimSpace(c.GetHeader(HeaderOrg))
		}
		if rawOrgID == "" {
			AbortWithError(c, organizationdomain.ErrInvalidOrganization)
			return
		}

		orgID, err := snowflake.ParseString(rawOrgID)
		if err != nil || orgID == 0 {
			AbortWithError(c, organizationdomain.ErrInvalidOrganization)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
