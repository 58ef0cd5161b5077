package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/health"
	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/recalc"
	"github.com/david/opportunity-radar/internal/scoring"
)

// Store is the persistence the HTTP surface reads and writes.
type Store interface {
	ListRules(ctx context.Context) ([]models.ScoringRule, error)
	GetRule(ctx context.Context, id int64) (*models.ScoringRule, error)
	CreateRule(ctx context.Context, r models.ScoringRule) (*models.ScoringRule, error)
	UpdateRule(ctx context.Context, id int64, r models.ScoringRule) (*models.ScoringRule, error)
	ToggleRule(ctx context.Context, id int64) (*models.ScoringRule, error)
	DeleteRule(ctx context.Context, id int64) error

	ListOpportunities(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	CreateOpportunity(ctx context.Context, o models.Opportunity) (*models.Opportunity, error)

	ListSources(ctx context.Context, activeOnly bool) ([]models.SourceConfig, error)
	GetSource(ctx context.Context, id string) (*models.SourceConfig, error)
	InsertHealthMetrics(ctx context.Context, m models.SourceHealthMetrics) (*models.SourceHealthMetrics, error)
}

// Recalculator is the coordinator as seen by the admin surface.
type Recalculator interface {
	RecalculateAll(ctx context.Context, trigger string) (recalc.Job, error)
	RecalculateOne(ctx context.Context, id uuid.UUID) (scoring.Result, error)
	RulesChanged(reason string)
	Job(id string) (recalc.Job, error)
	Jobs() []recalc.Job
	Cancel(id string) (recalc.Job, error)
}

// HealthReader serves derived source health.
type HealthReader interface {
	Summary(ctx context.Context, sourceID string) (health.Summary, error)
	Overview(ctx context.Context) (health.Overview, error)
	History(ctx context.Context, sourceID string, days int) ([]models.SourceHealthMetrics, error)
}

type Deps struct {
	Store       Store
	Recalc      Recalculator
	Health      HealthReader
	Metrics     http.Handler
	Log         *zap.Logger
	AdminSecret string
	CORSOrigins []string
}

type Server struct {
	Echo *echo.Echo

	store   Store
	recalc  Recalculator
	health  HealthReader
	metrics http.Handler
	log     *zap.Logger
	secret  string
	text    *bluemonday.Policy
	now     func() time.Time
}

func NewServer(d Deps) (*Server, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	secret, err := adminSecret(d.AdminSecret, d.Log)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:    e,
		store:   d.Store,
		recalc:  d.Recalc,
		health:  d.Health,
		metrics: d.Metrics,
		log:     d.Log,
		secret:  secret,
		text:    bluemonday.StrictPolicy(),
		now:     time.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/opportunities/:id/score", s.handleGetScore)
	api.GET("/sources/health", s.handleHealthOverview)
	api.GET("/sources/:id/health", s.handleSourceHealth)
	api.GET("/sources/:id/metrics", s.handleSourceMetrics)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)

	admin.GET("/rules", s.handleListRules)
	admin.POST("/rules", s.handleCreateRule)
	admin.GET("/rules/:id", s.handleGetRule)
	admin.PUT("/rules/:id", s.handleUpdateRule)
	admin.DELETE("/rules/:id", s.handleDeleteRule)
	admin.POST("/rules/:id/toggle", s.handleToggleRule)

	admin.POST("/recalculate", s.handleRecalculateAll)
	admin.GET("/recalculate/jobs", s.handleListJobs)
	admin.GET("/recalculate/jobs/:id", s.handleJobStatus)
	admin.POST("/recalculate/jobs/:id/cancel", s.handleCancelJob)
	admin.POST("/opportunities/:id/recalculate", s.handleRecalculateOne)

	admin.POST("/opportunities", s.handleCreateOpportunity)
	admin.GET("/sources", s.handleListSources)
	admin.POST("/sources/:id/metrics", s.handleRecordMetrics)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 without internals.
func (s *Server) respondError(c echo.Context, err error) error {
	if ve, ok := models.AsValidationError(err); ok {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": ve.Error(), "field": ve.Field})
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, db.ErrDuplicateRuleName), errors.Is(err, db.ErrDuplicateMetrics):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, db.ErrUnknownSource):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error(), "field": "source_id"})
	case errors.Is(err, recalc.ErrShutdown):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
	case errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	}
	s.log.Error("api: request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader != "" && adminHeader == s.secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == s.secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// adminSecret returns the configured secret or, if none is set, a random
// one that lives only as long as the process.
func adminSecret(configured string, log *zap.Logger) (string, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret, nil
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
	}
	log.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
