package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/trustcove/trustcove/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonIPRate            = "ip-rate"
	rateLimitReasonOrgRate           = "org-rate"
	rateLimitReasonAcceptConcurrency = "accept-concurrency"
)

// InviteRateLimit throttles the public invitation endpoints per client IP.
// Tokens are unguessable, but the resolve endpoint still answers 404/410
// distinctly, so blind probing gets cut off here.
func (s *Server) InviteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.inviteLimiter == nil || !s.inviteLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		allowed, err := s.inviteLimiter.AllowIP(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("invite ip rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			s.denyInviteRateLimit(c, "", rateLimitReasonIPRate)
			return
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, "", normalizeRateLimitEndpoint(c))
		}
		c.Next()
	}
}

func (s *Server) denyInviteRateLimit(c *gin.Context, orgID, reason string) {
	ctx := c.Request.Context()
	endpoint := normalizeRateLimitEndpoint(c)
	logger.FromContext(ctx).Warn("invite rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRateLimitDenied(ctx, orgID, endpoint, reason)
	}

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrTooManyRequests)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
