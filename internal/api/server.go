package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/internal/common"
	"frizo/margin_engine/internal/logger"
	"frizo/margin_engine/internal/margin"
	"frizo/margin_engine/internal/metrics"
	"frizo/margin_engine/internal/version"
	"frizo/margin_engine/pkg/utils"
)

const requestIDHeader = "X-Request-ID"

// Catalog assets exposed to the front-end
type Catalog interface {
	List() []asset.Config
	Len() int
}

type Options struct {
	AllowOrigins []string
	Logger       *zap.Logger
	Metrics      *metrics.Metrics    // optional
	Gatherer     prometheus.Gatherer // optional, serves /metrics when set
}

// Server HTTP front of the margin validator
type Server struct {
	router    *gin.Engine
	catalog   Catalog
	validator *margin.Validator
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewServer(catalog Catalog, validator *margin.Validator, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Default().Logger
	}

	s := &Server{
		router:    gin.New(),
		catalog:   catalog,
		validator: validator,
		metrics:   opts.Metrics,
		log:       log,
	}

	s.router.Use(ginzap.Ginzap(log, time.RFC3339, true))
	s.router.Use(ginzap.RecoveryWithZap(log, true))
	s.router.Use(requestID())
	if len(opts.AllowOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	s.router.GET("/health", s.health)
	s.router.GET("/config/assets", s.listAssets)
	s.router.POST("/margin/validate", s.validateMargin)
	if opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =====================================================
// handlers
// =====================================================

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Get(),
		"assets":  s.catalog.Len(),
	})
}

func (s *Server) listAssets(c *gin.Context) {
	c.JSON(http.StatusOK, assetsResponse{
		Assets: utils.Map(s.catalog.List(), newAssetResponse),
	})
}

func (s *Server) validateMargin(c *gin.Context) {
	start := time.Now()

	var body validateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.reject(c, s.validator.RejectMalformed(err), start)
		return
	}

	req, err := body.toRequest()
	if err != nil {
		s.reject(c, s.validator.RejectMalformed(err), start)
		return
	}

	decision, err := s.validator.Validate(req)
	if err != nil {
		if rej, ok := margin.IsRejection(err); ok {
			s.reject(c, rej, start)
			return
		}
		// Validate only returns rejections
		s.log.Error("unexpected validation error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, rejectionResponse{Detail: http.StatusText(http.StatusInternalServerError)})
		return
	}

	s.observe(string(decision.Status), start)
	c.JSON(http.StatusOK, newDecisionResponse(decision))
}

func (s *Server) reject(c *gin.Context, rej *margin.RejectionError, start time.Time) {
	s.log.Debug("margin request rejected",
		zap.String("reason", rej.Reason),
		zap.String("request_id", c.GetString(requestIDHeader)),
		zap.Error(rej),
	)
	s.observe("rejected", start)
	c.JSON(http.StatusBadRequest, rejectionResponse{Detail: rej.Message})
}

func (s *Server) observe(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveValidation(status, time.Since(start))
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = common.GenerateRequestID()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
