package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	signupdomain "github.com/trustcove/trustcove/internal/signup/domain"
)

type SignupRequest struct {
	OrgName     string `json:"org_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Signup creates a user with a personal organization and logs them in.
func (s *Server) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.signupsvc.Signup(c.Request.Context(), signupdomain.Request{
		OrgName:     req.OrgName,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
		UserAgent:   c.Request.UserAgent(),
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Session != nil && result.RawToken != "" {
		s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordSignup(c.Request.Context(), "direct")
	}

	c.JSON(http.StatusOK, result.Session)
}
