package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuiexam/internal/attemptsvc"
	"github.com/verte-zerg/tuiexam/internal/config"
	"github.com/verte-zerg/tuiexam/internal/generator"
	"github.com/verte-zerg/tuiexam/internal/logger"
)

const (
	defaultServeAddr    = ":8080"
	defaultServeMode    = "release"
	defaultPerSubject   = 30
	serveShutdownWait   = 10 * time.Second
	serveReadHeaderWait = 5 * time.Second
)

var (
	serveAddr       string
	serveMode       string
	serveOrigins    []string
	servePerSubject int
	serveDuration   time.Duration
	serveLogFormat  string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the practice attempt server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultServeAddr, "listen address")
	cmd.Flags().StringVar(&serveMode, "mode", defaultServeMode, "gin mode: debug, release or test")
	cmd.Flags().StringSliceVar(&serveOrigins, "allowed-origins", nil, "CORS origins (default: all)")
	cmd.Flags().IntVar(&servePerSubject, "per-subject", defaultPerSubject, "questions per subject")
	cmd.Flags().DurationVar(&serveDuration, "duration", attemptsvc.DefaultPaperConfig.Duration, "exam duration reported to clients")
	cmd.Flags().StringVar(&serveLogFormat, "log-format", "pretty", "log format: json or pretty")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, env, err := loadSettings()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Serve.Addr)
	applyStringConfig(cmd, "mode", &serveMode, fileCfg.Serve.Mode)
	applyStringsConfig(cmd, "allowed-origins", &serveOrigins, fileCfg.Serve.AllowedOrigins)
	applyIntConfig(cmd, "per-subject", &servePerSubject, fileCfg.Serve.PerSubject)
	applyDurationConfig(cmd, "duration", &serveDuration, fileCfg.Serve.Duration)
	applyStringConfig(cmd, "log-format", &serveLogFormat, fileCfg.Log.Format)
	applyStringConfig(cmd, "addr", &serveAddr, config.StringPtr(env.ServeAddr))
	applyStringConfig(cmd, "log-format", &serveLogFormat, config.StringPtr(env.LogFormat))

	level := defaultLogLevel
	if fileCfg.Log.Level != nil {
		level = *fileCfg.Log.Level
	}
	if env.LogLevel != "" {
		level = env.LogLevel
	}

	if servePerSubject <= 0 {
		return fmt.Errorf("--per-subject must be > 0")
	}
	if serveDuration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}

	log := logger.Setup(level, serveLogFormat, os.Stdout)

	paperCfg := attemptsvc.DefaultPaperConfig
	paperCfg.PerSubject = servePerSubject
	paperCfg.Duration = serveDuration
	svc := attemptsvc.NewService(paperCfg, generator.New(), nil)
	router := attemptsvc.NewRouter(svc, attemptsvc.RouterConfig{
		Mode:           serveMode,
		AllowedOrigins: serveOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           router,
		ReadHeaderTimeout: serveReadHeaderWait,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", serveAddr).
			Int("per_subject", servePerSubject).
			Dur("duration", serveDuration).
			Msg("Practice attempt server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Info().Int("attempts", svc.Len()).Msg("Server stopped")
	return nil
}
