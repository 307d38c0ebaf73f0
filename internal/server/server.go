// Package server exposes the design, analysis, and registry operations over
// HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/liftlab/liftgate/internal/scenario"
	"github.com/liftlab/liftgate/internal/store"
)

// rate validates that a field is a fraction in (0,1]. Registered on gin's
// binding engine so request structs can use it as a tag.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("rate", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return f > 0 && f <= 1
		})
	}
}

// #region server
// Server holds the dependencies the handlers need.
type Server struct {
	store      *store.Store
	source     scenario.Source
	targetLift float64
	log        zerolog.Logger
}

// Options configures a Server. Source may be nil, in which case scenario
// proposals are disabled.
type Options struct {
	Store      *store.Store
	Source     scenario.Source
	TargetLift float64
	Log        zerolog.Logger
}

// New builds a Server from its dependencies.
func New(opts Options) *Server {
	return &Server{
		store:      opts.Store,
		source:     opts.Source,
		targetLift: opts.TargetLift,
		log:        opts.Log,
	}
}

// #endregion server

// #region router
// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/sample-size", s.handleSampleSize)
		v1.POST("/select-test", s.handleSelectTest)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/decision", s.handleDecision)

		v1.POST("/experiments", s.handleCreateExperiment)
		v1.GET("/experiments", s.handleListExperiments)
		v1.GET("/experiments/:id", s.handleGetExperiment)
		v1.POST("/experiments/:id/status", s.handleSetStatus)
		v1.POST("/experiments/:id/observations", s.handleRecordObservation)
		v1.POST("/experiments/:id/analyze", s.handleAnalyzeExperiment)
		v1.GET("/experiments/:id/audit", s.handleAuditTrail)

		v1.POST("/scenarios/propose", s.handleProposeScenario)
	}

	return r
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}

// #endregion router
