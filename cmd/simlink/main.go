package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/cnst"
	"github.com/mimiclab/simlink/internal/common/config"
	"github.com/mimiclab/simlink/internal/presets"
	"github.com/mimiclab/simlink/internal/session"
	"github.com/mimiclab/simlink/pkg/logger"
	"github.com/mimiclab/simlink/pkg/metrics"
	"github.com/mimiclab/simlink/pkg/trace"
	"github.com/mimiclab/simlink/pkg/version"
)

var (
	configPath string
	listenAddr string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of simlink",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("simlink version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "simlink",
		Short: "Simulation session bridge",
		Long:  `simlink keeps a resilient realtime session to the simulation backend and exposes it over a local HTTP control surface`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", cnst.SimlinkYaml, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "addr", ":8765", "local control listen address")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	lg.Info("starting simlink",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath),
		zap.String("backend", cfg.Backend.URL))

	ctx := context.Background()
	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctxTO, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctxTO)
	}()

	m := metrics.New(cfg.Metrics)

	sess := session.New(
		session.NewConfig(cfg.Backend.URL, cfg.Session),
		lg.Named("session"),
		session.WithMetrics(m),
	)
	defer sess.Close()

	offReady := sess.OnReadyStateChange(func(ready bool) {
		lg.Info("backend readiness changed", zap.Bool("ready", ready))
	})
	defer offReady()
	offBusy := sess.OnComputingChange(func(busy bool) {
		lg.Info("backend busy flag changed", zap.Bool("computing", busy))
	})
	defer offBusy()
	offTail := sess.OnMessage(func(msg *session.Message) {
		lg.Debug("inbound message",
			zap.String("type", msg.Type),
			zap.String("message_id", msg.MessageID))
	})
	defer offTail()

	sess.Connect()

	store := presets.NewClient(&cfg.Presets, lg)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("simlink"))
	router.Use(m.Middleware())
	registerRoutes(router, sess, store, m)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		lg.Info("control surface listening", zap.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("failed to start control surface", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	ctxTO, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxTO); err != nil {
		lg.Error("failed to shutdown control surface", zap.Error(err))
	}
	sess.Disconnect()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
