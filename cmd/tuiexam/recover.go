package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuiexam/internal/config"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/session"
	"github.com/verte-zerg/tuiexam/internal/store"
)

var recoverSettings = examSettings{
	Backend:  defaultBackend,
	RedisTTL: defaultRedisTTL,
}

func newRecoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Print the locally saved answers of an attempt",
		Args:  cobra.NoArgs,
		RunE:  runRecoverCmd,
	}
	cmd.Flags().StringVar(&recoverSettings.AttemptID, "attempt", "", "attempt id")
	cmd.Flags().StringVar(&recoverSettings.Backend, "store", recoverSettings.Backend, "snapshot backend: sqlite or redis")
	cmd.Flags().StringVar(&recoverSettings.DBPath, "db", "", "sqlite database path (default: XDG data dir)")
	cmd.Flags().StringVar(&recoverSettings.RedisURL, "redis-url", "", "redis URL for the redis snapshot backend")
	if err := cmd.MarkFlagRequired("attempt"); err != nil {
		panic(err)
	}
	return cmd
}

func runRecoverCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, env, err := loadSettings()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "store", &recoverSettings.Backend, fileCfg.Store.Backend)
	applyStringConfig(cmd, "db", &recoverSettings.DBPath, fileCfg.Store.Path)
	applyStringConfig(cmd, "redis-url", &recoverSettings.RedisURL, fileCfg.Store.RedisURL)
	applyStringConfig(cmd, "redis-url", &recoverSettings.RedisURL, config.StringPtr(env.RedisURL))
	if recoverSettings.DBPath == "" {
		recoverSettings.DBPath = config.DefaultDBPath()
	}
	if recoverSettings.Backend == backendMemory {
		return fmt.Errorf("the memory backend keeps nothing to recover")
	}

	st, err := store.Open(recoverSettings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	snapshots, closeSnapshots, err := openSnapshots(context.Background(), recoverSettings, st, zerolog.Nop())
	if err != nil {
		return err
	}
	defer closeSnapshots()

	responses, ok, err := session.RecoverResponses(snapshots, recoverSettings.AttemptID)
	if err != nil {
		return fmt.Errorf("failed to recover answers: %w", err)
	}
	if !ok {
		logErrln("No saved answers for attempt", recoverSettings.AttemptID)
		return nil
	}
	return writeRecovered(cmd.OutOrStdout(), recoverSettings.AttemptID, responses)
}

func writeRecovered(w io.Writer, attemptID string, responses model.Responses) error {
	payload := struct {
		AttemptID string                `json:"attemptId"`
		Responses []model.ResponseEntry `json:"responses"`
	}{
		AttemptID: attemptID,
		Responses: responses.Entries(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
