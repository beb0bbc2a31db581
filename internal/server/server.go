package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trustcove/trustcove/internal/audit"
	auditdomain "github.com/trustcove/trustcove/internal/audit/domain"
	"github.com/trustcove/trustcove/internal/auth"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	"github.com/trustcove/trustcove/internal/auth/session"
	"github.com/trustcove/trustcove/internal/authorization"
	"github.com/trustcove/trustcove/internal/config"
	"github.com/trustcove/trustcove/internal/invitation"
	invitationdomain "github.com/trustcove/trustcove/internal/invitation/domain"
	"github.com/trustcove/trustcove/internal/observability"
	obsmiddleware "github.com/trustcove/trustcove/internal/observability/logger"
	obsmetrics "github.com/trustcove/trustcove/internal/observability/metrics"
	obstracing "github.com/trustcove/trustcove/internal/observability/tracing"
	"github.com/trustcove/trustcove/internal/organization"
	organizationdomain "github.com/trustcove/trustcove/internal/organization/domain"
	"github.com/trustcove/trustcove/internal/ratelimit"
	"github.com/trustcove/trustcove/internal/signup"
	signupdomain "github.com/trustcove/trustcove/internal/signup/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	session.Module,
	organization.Module,
	invitation.Module,
	signup.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	authsvc         authdomain.Service
	sessions        *session.Manager
	genID           *snowflake.Node
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	organizationSvc organizationdomain.Service
	invitationSvc   invitationdomain.Service
	signupsvc       signupdomain.Service
	obsMetrics      *obsmetrics.Metrics
	inviteLimiter   *ratelimit.InviteLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	GenID           *snowflake.Node
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	OrganizationSvc organizationdomain.Service
	InvitationSvc   invitationdomain.Service
	Signupsvc       signupdomain.Service
	ObsMetrics      *obsmetrics.Metrics      `optional:"true"`
	InviteLimiter   *ratelimit.InviteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		genID:           p.GenID,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		invitationSvc:   p.InvitationSvc,
		signupsvc:       p.Signupsvc,
		obsMetrics:      p.ObsMetrics,
		inviteLimiter:   p.InviteLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerInvitationRoutes()
	svc.registerOrganizationRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.Me)

	user := auth.Group("/user", s.WebAuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
	}
}

// Invitation token endpoints are reachable without a session: the token is
// the credential. Both are rate limited per client IP.
func (s *Server) registerInvitationRoutes() {
	invites := s.engine.Group("/invitations")

	invites.GET("/:token", s.InviteRateLimit(), s.ResolveInvitation)
	invites.POST("/:token/accept", s.InviteRateLimit(), s.AcceptInvitation)
}

func (s *Server) registerOrganizationRoutes() {
	orgs := s.engine.Group("/organizations", s.WebAuthRequired())

	orgs.POST("", s.CreateOrganization)
	orgs.GET("", s.ListOrganizations)

	org := orgs.Group("/:id", s.OrgContext())
	{
		org.GET("", s.GetOrganization)

		org.GET("/members", s.ListOrganizationMembers)
		org.POST("/members", s.AddOrganizationMember)
		org.PUT("/members/:memberId", s.UpdateOrganizationMemberRole)
		org.DELETE("/members/:memberId", s.RemoveOrganizationMember)

		org.POST("/invitations", s.CreateOrganizationInvitation)
		org.GET("/invitations", s.ListOrganizationInvitations)
		org.DELETE("/invitations/:inviteId", s.RevokeOrganizationInvitation)

		org.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	}
}
