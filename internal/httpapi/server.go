package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"logistria/internal/config"
	"logistria/internal/docstore"
	"logistria/internal/identity"
	"logistria/internal/service"
	"logistria/internal/storage"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Store    docstore.Store
	Verifier *identity.Verifier
	Profiles *identity.Profiles
	Imports  *service.ImportService
	Orders   *service.OrderService
	Feeds    *service.FeedService
	// Approvals, when set, lets operators resolve agent actions.
	Approvals *storage.ApprovalStore
	// Events, when set, is streamed on /api/events.
	Events *service.Broadcaster
	// OrderLimiter, when set, throttles order placement.
	OrderLimiter *RateLimiter

	MaxUploadBytes int64
	AllowedOrigins []string
}

type server struct {
	Deps
	log *logrus.Logger
}

// NewRouter builds the gin engine serving the console and storefront.
func NewRouter(deps Deps) *gin.Engine {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	s := &server{Deps: deps, log: config.GetLogger()}

	r := gin.New()
	r.Use(requestID())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))
	r.Use(customErrorLogger(s.log))
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)

	api := r.Group("/api", s.authRequired())
	api.GET("/session", s.session)
	api.GET("/catalog", s.catalog)
	api.GET("/orders", s.listOrders)
	if deps.OrderLimiter != nil {
		api.POST("/orders", deps.OrderLimiter.RateLimitMiddleware, s.placeOrder)
	} else {
		api.POST("/orders", s.placeOrder)
	}

	console := api.Group("", operatorOnly())
	console.GET("/targets", s.targets)
	console.POST("/imports", s.importFile)
	console.POST("/imports/preview", s.previewImport)
	console.GET("/imports/runs", s.listRuns)
	console.GET("/import-jobs", s.listJobs)
	console.POST("/import-jobs", s.createJob)
	console.GET("/import-jobs/:id", s.getJob)
	console.PATCH("/import-jobs/:id", s.updateJob)
	console.DELETE("/import-jobs/:id", s.deleteJob)
	console.POST("/import-jobs/:id/run", s.runJob)
	console.GET("/dashboard", s.dashboard)
	console.GET("/feed/:collection", s.feed)
	console.GET("/events", s.events)
	console.GET("/mcp/approvals", s.listApprovals)
	console.POST("/mcp/approvals/:id/approve", s.resolveApproval(true))
	console.POST("/mcp/approvals/:id/reject", s.resolveApproval(false))

	r.NoRoute(customNotFoundHandler)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) > 0 {
		c.AllowOrigins = origins
	} else {
		c.AllowAllOrigins = true
	}
	c.AddAllowMethods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	c.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	c.AddExposeHeaders("Content-Length", requestIDHeader)
	return c
}

func (s *server) healthz(c *gin.Context) {
	if s.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document store unreachable"})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// Serve runs handler on addr until ctx is done, then drains connections
// for up to 30 seconds.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	logger := config.GetLogger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErrCh
}
