package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"logistria/internal/config"
	"logistria/internal/httpapi"
	"logistria/internal/identity"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations console and storefront API",
	Long: `Starts the HTTP API, the scheduled and file-watch import jobs and, when
IMPORT_INBOX_DIR is set, the inbox watcher. SIGINT/SIGTERM stop accepting
requests and wait for running imports before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.cfg.Validate(); err != nil {
		return err
	}
	logger := config.GetLogger()

	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	var limiter *httpapi.RateLimiter
	if rt.cfg.RateLimitMaxRequests > 0 && rt.redis != nil {
		limiter = httpapi.NewRateLimiter(rt.redis, "ratelimit:orders:", int64(rt.cfg.RateLimitMaxRequests), rt.cfg.RateLimitWindow)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Store:          rt.docs,
		Verifier:       identity.NewVerifier(rt.cfg.IdentitySecret, rt.cfg.IdentityIssuer),
		Profiles:       rt.profiles,
		Imports:        rt.imports,
		Orders:         rt.orders,
		Feeds:          rt.feeds,
		Approvals:      rt.approvals,
		Events:         rt.events,
		OrderLimiter:   limiter,
		MaxUploadBytes: rt.cfg.MaxUploadBytes,
		AllowedOrigins: rt.cfg.CORSAllowedOrigins,
	})

	rt.imports.Start(ctx)

	serveErr := httpapi.Serve(ctx, rt.cfg.HTTPAddr, router)

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rt.imports.WaitRunning(waitCtx)
	logger.Info("server stopped")
	return serveErr
}
