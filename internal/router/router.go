package router // package router registers the HTTP routes of the API

import (
	"crypto/rsa"
	"database/sql"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/config"
	"github.com/iliyamo/hcap-portal/internal/handler"
	"github.com/iliyamo/hcap-portal/internal/middleware"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	EmployerActions *handler.EmployerActionHandler
	ROS             *handler.ROSHandler
	Reports         *handler.ReportHandler
	Participants    *handler.ParticipantHandler
	Sites           *handler.SiteHandler
	Cohorts         *handler.CohortHandler
	Phases          *handler.PhaseHandler
	Users           *handler.UserHandler
}

// Deps is what the authenticated middleware chain needs.
type Deps struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client // nil disables rate limiting and caching
	RealmKey  *rsa.PublicKey
	Users     middleware.UserDirectory
	Log       *zap.Logger
}

// New builds the Echo server: global middleware, the error handler and
// every route.
func New(d Deps, db *sql.DB, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())

	RegisterHealth(e, db)
	RegisterAPI(e, d, h)
	return e
}

// RegisterHealth mounts the unauthenticated probes.
func RegisterHealth(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAPI mounts everything under /api/v1.  Only the expression of
// interest is public; the rest runs JWTAuth, Identity and the rate limiter
// in that order, with capability checks per route.
func RegisterAPI(e *echo.Echo, d Deps, h Handlers) {
	api := e.Group("/api/v1")
	api.POST("/participants", h.Participants.Create)

	g := api.Group("",
		middleware.JWTAuth(d.RealmKey, d.Cfg.Keycloak.Issuer),
		middleware.Identity(d.Users, d.Cfg.Features.KeycloakMigration, d.Log),
		middleware.RateLimit(d.RateLimit, d.Redis, d.Log),
	)

	ministry := middleware.RequireRole(auth.RoleMinistry, auth.RoleSuperuser)
	transition := middleware.RequireCapability(auth.CanTransition)
	viewReports := middleware.RequireCapability(auth.CanViewReports)
	manageSites := middleware.RequireCapability(auth.CanManageSites)

	// ---- Users ----
	g.GET("/user", h.Users.Me)
	g.GET("/users", h.Users.List, middleware.RequireCapability(auth.CanManageUsers))
	g.POST("/approve-user", h.Users.Approve, middleware.RequireCapability(auth.CanManageUsers))

	// ---- Participants ----
	g.GET("/participants", h.Participants.List, transition)
	g.GET("/participant/:id", h.Participants.Get)
	g.PATCH("/participant/:id", h.Participants.Update)
	g.DELETE("/participant/:id", h.Participants.Delete, ministry)
	g.GET("/participant/:id/status-history", h.EmployerActions.History, transition)

	// ---- Status transitions ----
	ea := g.Group("/employer-actions", transition)
	ea.POST("", h.EmployerActions.Transition)
	ea.POST("/archive", h.EmployerActions.Archive, middleware.RequireCapability(auth.CanArchive))
	ea.POST("/bulk-engage", h.EmployerActions.BulkEngage)

	// ---- Return of service ----
	ros := g.Group("/ros/participant", middleware.RequireCapability(auth.CanManageROS))
	ros.GET("/:id", h.ROS.Get)
	ros.GET("/:id/history", h.ROS.History)
	ros.POST("/:id", h.ROS.Create)
	ros.PATCH("/:id", h.ROS.Update)
	ros.PATCH("/:id/change-site", h.ROS.ChangeSite)

	// ---- Reports ----
	g.GET("/milestone-report", h.Reports.Milestones, viewReports, middleware.ReportCache(d.Cache, d.Redis, d.Log))
	mr := g.Group("/milestone-report/csv", viewReports)
	mr.GET("/hired", h.Reports.HiredCSV)
	mr.GET("/hired/:region", h.Reports.HiredCSV)
	mr.GET("/ros", h.Reports.ROSCSV)
	mr.GET("/ros/:region", h.Reports.ROSCSV)
	g.GET("/psi-report/csv/participants", h.Reports.PSIParticipantsCSV, viewReports)

	// ---- Employer sites ----
	g.GET("/employer-sites", h.Sites.List, transition)
	g.GET("/employer-sites/:id", h.Sites.Get, transition)
	g.POST("/employer-sites", h.Sites.Create, manageSites)
	g.PATCH("/employer-sites/:id", h.Sites.Update, manageSites)

	// ---- Post-secondary institutes and cohorts ----
	g.GET("/psi", h.Cohorts.ListInstitutes, viewReports)
	g.POST("/psi", h.Cohorts.CreateInstitute, ministry)
	g.GET("/psi/:id/cohorts", h.Cohorts.ListCohorts, viewReports)
	g.POST("/psi/:id/cohorts", h.Cohorts.CreateCohort, ministry)
	g.POST("/cohorts/:id/assign/:participantId", h.Cohorts.Assign, ministry)

	// ---- Phase allocation ----
	if d.Cfg.Features.PhaseAllocation {
		g.GET("/phase-allocation", h.Phases.List, viewReports)
		g.POST("/phase-allocation", h.Phases.Create, manageSites)
		g.POST("/phase-allocation/:phaseId/site/:siteId", h.Phases.SetAllocation, manageSites)
	}
}
