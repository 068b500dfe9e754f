// Package main provides the CLI entrypoint for tuiexam.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/config"
	"github.com/verte-zerg/tuiexam/internal/logger"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/remote"
	"github.com/verte-zerg/tuiexam/internal/session"
	"github.com/verte-zerg/tuiexam/internal/snapshot"
	"github.com/verte-zerg/tuiexam/internal/store"
	"github.com/verte-zerg/tuiexam/internal/tui"
)

const (
	defaultServer     = "http://localhost:8080"
	defaultShift      = "morning"
	defaultBackend    = backendSQLite
	defaultLogLevel   = "info"
	defaultLogFormat  = "json"
	defaultRedisTTL   = 24 * time.Hour
	historyRecordWait = 5 * time.Second
)

const (
	backendSQLite = "sqlite"
	backendRedis  = "redis"
	backendMemory = "memory"
)

// examSettings collects the root command's resolved values.
type examSettings struct {
	Server             string
	Token              string
	AttemptID          string
	Year               int
	Shift              string
	Duration           time.Duration
	CheckpointInterval time.Duration
	Backend            string
	DBPath             string
	RedisURL           string
	RedisTTL           time.Duration
	LogLevel           string
	LogFormat          string
}

var exam = examSettings{
	Server:             defaultServer,
	Year:               time.Now().Year(),
	Shift:              defaultShift,
	CheckpointInterval: session.DefaultCheckpointInterval,
	Backend:            defaultBackend,
	RedisTTL:           defaultRedisTTL,
	LogLevel:           defaultLogLevel,
	LogFormat:          defaultLogFormat,
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuiexam",
		Short:         "Timed exam attempts in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runExamCmd,
	}

	rootCmd.Flags().StringVar(&exam.Server, "server", exam.Server, "attempt service base URL")
	rootCmd.Flags().StringVar(&exam.Token, "token", "", "bearer token for the attempt service")
	rootCmd.Flags().StringVar(&exam.AttemptID, "attempt", "", "resume this attempt id")
	rootCmd.Flags().IntVar(&exam.Year, "year", exam.Year, "exam year")
	rootCmd.Flags().StringVar(&exam.Shift, "shift", exam.Shift, "exam shift")
	rootCmd.Flags().DurationVar(&exam.Duration, "duration", 0, "override the exam duration reported by the service")
	rootCmd.Flags().DurationVar(&exam.CheckpointInterval, "checkpoint-interval", exam.CheckpointInterval, "period of background checkpoints")
	rootCmd.Flags().StringVar(&exam.Backend, "store", exam.Backend, "snapshot backend: sqlite, redis or memory")
	rootCmd.Flags().StringVar(&exam.DBPath, "db", "", "sqlite database path (default: XDG data dir)")
	rootCmd.Flags().StringVar(&exam.RedisURL, "redis-url", "", "redis URL for the redis snapshot backend")
	rootCmd.Flags().StringVar(&exam.LogLevel, "log-level", exam.LogLevel, "log level")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newRecoverCmd())

	return rootCmd
}

// loadSettings layers env and TOML values under flags set on the command
// line. Env wins over TOML.
func loadSettings() (config.FileConfig, config.Env, error) {
	env := config.LoadEnv(".env", config.DefaultEnvPath())
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, config.Env{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, env, nil
}

func applyExamConfig(cmd *cobra.Command, fileCfg config.FileConfig, env config.Env) {
	applyStringConfig(cmd, "server", &exam.Server, fileCfg.Server.URL)
	applyStringConfig(cmd, "token", &exam.Token, fileCfg.Server.Token)
	applyIntConfig(cmd, "year", &exam.Year, fileCfg.Exam.Year)
	applyStringConfig(cmd, "shift", &exam.Shift, fileCfg.Exam.Shift)
	applyDurationConfig(cmd, "duration", &exam.Duration, fileCfg.Exam.Duration)
	applyDurationConfig(cmd, "checkpoint-interval", &exam.CheckpointInterval, fileCfg.Exam.CheckpointInterval)
	applyStringConfig(cmd, "store", &exam.Backend, fileCfg.Store.Backend)
	applyStringConfig(cmd, "db", &exam.DBPath, fileCfg.Store.Path)
	applyStringConfig(cmd, "redis-url", &exam.RedisURL, fileCfg.Store.RedisURL)
	if fileCfg.Store.RedisTTL != nil {
		exam.RedisTTL = fileCfg.Store.RedisTTL.Duration
	}
	applyStringConfig(cmd, "log-level", &exam.LogLevel, fileCfg.Log.Level)
	if fileCfg.Log.Format != nil {
		exam.LogFormat = *fileCfg.Log.Format
	}

	applyStringConfig(cmd, "server", &exam.Server, config.StringPtr(env.Server))
	applyStringConfig(cmd, "token", &exam.Token, config.StringPtr(env.Token))
	applyStringConfig(cmd, "redis-url", &exam.RedisURL, config.StringPtr(env.RedisURL))
	applyStringConfig(cmd, "log-level", &exam.LogLevel, config.StringPtr(env.LogLevel))
	if env.LogFormat != "" {
		exam.LogFormat = env.LogFormat
	}
	if exam.DBPath == "" {
		exam.DBPath = config.DefaultDBPath()
	}
}

func runExamCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, env, err := loadSettings()
	if err != nil {
		return err
	}
	applyExamConfig(cmd, fileCfg, env)
	if err := validateExamSettings(exam); err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; run tuiexam in an interactive shell")
	}

	logFile, err := logger.OpenFile(config.DefaultLogPath())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			_ = cerr
		}
	}()
	log := logger.Setup(exam.LogLevel, exam.LogFormat, logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := store.Open(exam.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := history.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	snapshots, closeSnapshots, err := openSnapshots(ctx, exam, history, log)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	creds := remote.Credentials{Token: exam.Token}
	client := remote.NewHTTPClient(exam.Server, creds, remote.WithLogger(log))

	var program *tea.Program
	opts := session.Options{
		AttemptID:          exam.AttemptID,
		Year:               exam.Year,
		Shift:              exam.Shift,
		Credentials:        creds,
		Duration:           exam.Duration,
		CheckpointInterval: exam.CheckpointInterval,
		Clock:              clock.System{},
		Logger:             log,
		OnSubmitted: func(o session.Outcome) {
			recordSubmission(history, o, log)
			program.Send(tui.SubmittedMsg{Outcome: o})
		},
		OnAutoSubmitError: func(err error) {
			program.Send(tui.AutoSubmitErrorMsg{Err: err})
		},
	}
	sess := session.New(client, snapshots, opts)
	defer sess.Close()

	program = tea.NewProgram(tui.NewModel(ctx, sess, log), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if id := sess.Attempt().ID; id != "" && sess.State() != session.StateSubmitted {
		logErrf("Attempt %s is not submitted. Resume with: tuiexam --attempt %s\n", id, id)
	}
	return nil
}

// openSnapshots returns the snapshot store chosen by settings. The sqlite
// backend shares the history database.
func openSnapshots(ctx context.Context, s examSettings, db *store.Store, log zerolog.Logger) (snapshot.Store, func(), error) {
	switch s.Backend {
	case backendSQLite:
		return db, func() {}, nil
	case backendMemory:
		return snapshot.NewMemory(), func() {}, nil
	case backendRedis:
		rdb, err := snapshot.OpenRedis(ctx, s.RedisURL, s.RedisTTL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis: %w", err)
		}
		return rdb, func() {
			if cerr := rdb.Close(); cerr != nil {
				_ = cerr
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}

func recordSubmission(db *store.Store, o session.Outcome, log zerolog.Logger) {
	submittedAt := o.Result.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyRecordWait)
	defer cancel()
	err := db.InsertSubmission(ctx, model.Submission{
		AttemptID:   o.Attempt.ID,
		Year:        o.Attempt.Year,
		Shift:       o.Attempt.Shift,
		StartedAt:   o.Attempt.StartedAt,
		SubmittedAt: submittedAt,
		Answered:    o.Result.Answered,
		Total:       o.Result.Total,
		TimedOut:    o.TimedOut,
	})
	if err != nil {
		log.Error().Err(err).Str("attempt_id", o.Attempt.ID).Msg("Failed to record submission")
	}
}

func validateExamSettings(s examSettings) error {
	if strings.TrimSpace(s.Server) == "" {
		return fmt.Errorf("--server must not be empty")
	}
	if s.AttemptID == "" {
		if s.Year <= 0 {
			return fmt.Errorf("--year must be > 0")
		}
		if strings.TrimSpace(s.Shift) == "" {
			return fmt.Errorf("--shift must not be empty")
		}
	}
	if s.Duration < 0 {
		return fmt.Errorf("--duration must be >= 0")
	}
	if s.CheckpointInterval <= 0 {
		return fmt.Errorf("--checkpoint-interval must be > 0")
	}
	switch s.Backend {
	case backendSQLite, backendMemory:
	case backendRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("--redis-url is required with --store redis")
		}
	default:
		return fmt.Errorf("--store must be one of sqlite, redis, memory")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func applyStringsConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if len(value) == 0 {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuiexam configuration
# Uncomment a value to enable it. CLI flags and TUIEXAM_* variables override config values.

[exam]
# year = %d                     # Exam year
# shift = %q               # Exam shift
# duration = "3h"                # Override the duration reported by the service
# checkpoint-interval = %q      # Period of background checkpoints

[server]
# url = %q  # Attempt service base URL
# token = ""                     # Bearer token

[store]
# backend = %q              # sqlite, redis or memory
# path = ""                      # SQLite database path
# redis-url = "redis://localhost:6379/0"
# redis-ttl = %q

[log]
# level = %q                  # trace, debug, info, warn, error
# format = %q                 # json or pretty

[serve]
# addr = %q
# mode = %q
# allowed-origins = []
# per-subject = %d
# duration = "3h"
`,
		time.Now().Year(),
		defaultShift,
		session.DefaultCheckpointInterval.String(),
		defaultServer,
		defaultBackend,
		defaultRedisTTL.String(),
		defaultLogLevel,
		defaultLogFormat,
		defaultServeAddr,
		defaultServeMode,
		defaultPerSubject,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
