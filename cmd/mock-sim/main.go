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
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/config"
	"github.com/mimiclab/simlink/internal/mocksim"
	"github.com/mimiclab/simlink/pkg/metrics"
	"github.com/mimiclab/simlink/pkg/version"
)

var (
	listenAddr string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mock-sim",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mock-sim version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "mock-sim",
		Short: "Mock simulation backend",
		Long:  `mock-sim serves the simulation realtime protocol and preset store for local development`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&listenAddr, "addr", ":8764", "listen address")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting mock-sim", zap.String("version", version.Get()))

	m := metrics.New(config.MetricsConfig{Namespace: "mocksim"})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))

	mocksim.New(logger).Register(router)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("listening", zap.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
