package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/config"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/snapshot"
	"github.com/verte-zerg/tuiexam/internal/store"
)

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func TestApplyExamConfigPrecedence(t *testing.T) {
	saved := exam
	t.Cleanup(func() { exam = saved })

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--year", "2031"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	fileCfg := config.FileConfig{
		Exam: config.ExamConfig{
			Year:     intPtr(2020),
			Shift:    strPtr("evening"),
			Duration: &config.Duration{Duration: 2 * time.Hour},
		},
		Server: config.ServerConfig{URL: strPtr("http://toml")},
		Log:    config.LogConfig{Format: strPtr("pretty")},
	}
	env := config.Env{Server: "http://env", Token: "env-token"}

	applyExamConfig(cmd, fileCfg, env)

	if exam.Year != 2031 {
		t.Fatalf("flag should win, got year %d", exam.Year)
	}
	if exam.Server != "http://env" || exam.Token != "env-token" {
		t.Fatalf("env should win over TOML, got %q %q", exam.Server, exam.Token)
	}
	if exam.Shift != "evening" || exam.Duration != 2*time.Hour || exam.LogFormat != "pretty" {
		t.Fatalf("TOML values not applied: %+v", exam)
	}
	if exam.DBPath == "" {
		t.Fatalf("expected default db path")
	}
}

func TestValidateExamSettings(t *testing.T) {
	base := examSettings{
		Server:             "http://localhost:8080",
		Year:               2026,
		Shift:              "morning",
		CheckpointInterval: time.Second,
		Backend:            backendSQLite,
	}
	if err := validateExamSettings(base); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}

	cases := map[string]func(*examSettings){
		"empty server":  func(s *examSettings) { s.Server = " " },
		"zero year":     func(s *examSettings) { s.Year = 0 },
		"empty shift":   func(s *examSettings) { s.Shift = "" },
		"zero interval": func(s *examSettings) { s.CheckpointInterval = 0 },
		"redis no url":  func(s *examSettings) { s.Backend = backendRedis },
		"bad backend":   func(s *examSettings) { s.Backend = "etcd" },
	}
	for name, mutate := range cases {
		s := base
		mutate(&s)
		if err := validateExamSettings(s); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	resume := base
	resume.AttemptID = "a-1"
	resume.Year = 0
	resume.Shift = ""
	if err := validateExamSettings(resume); err != nil {
		t.Fatalf("resuming needs no year or shift: %v", err)
	}
}

func TestOpenSnapshots(t *testing.T) {
	db, err := store.Open(t.TempDir() + "/tuiexam.db")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			_ = cerr
		}
	}()

	got, closeFn, err := openSnapshots(context.Background(), examSettings{Backend: backendSQLite}, db, zerolog.Nop())
	if err != nil || got != snapshot.Store(db) {
		t.Fatalf("sqlite backend should reuse the db, got %T %v", got, err)
	}
	closeFn()

	got, closeFn, err = openSnapshots(context.Background(), examSettings{Backend: backendMemory}, db, zerolog.Nop())
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := got.(*snapshot.Memory); !ok {
		t.Fatalf("expected memory store, got %T", got)
	}
	closeFn()

	if _, _, err := openSnapshots(context.Background(), examSettings{Backend: "etcd"}, db, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestWriteRecovered(t *testing.T) {
	var buf bytes.Buffer
	responses := model.Responses{
		"q002": json.RawMessage(`"B"`),
		"q001": json.RawMessage(`12.5`),
	}
	if err := writeRecovered(&buf, "a-1", responses); err != nil {
		t.Fatalf("writeRecovered: %v", err)
	}
	var out struct {
		AttemptID string                `json:"attemptId"`
		Responses []model.ResponseEntry `json:"responses"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AttemptID != "a-1" || len(out.Responses) != 2 || out.Responses[0].QuestionID != "q001" {
		t.Fatalf("unexpected output %s", buf.String())
	}
}

func TestRenderHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	renderHistoryTable(&buf, []model.Submission{{
		AttemptID:   "a-1",
		Year:        2026,
		Shift:       "morning",
		SubmittedAt: time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
		Answered:    42,
		Total:       90,
	}})
	out := buf.String()
	for _, want := range []string{"ATTEMPT", "a-1", "2026", "morning", "42/90"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestDefaultConfigTemplateUncommented(t *testing.T) {
	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, " = ") {
			line = strings.TrimPrefix(line, "# ")
		}
		lines = append(lines, line)
	}
	var cfg config.FileConfig
	if _, err := toml.Decode(strings.Join(lines, "\n"), &cfg); err != nil {
		t.Fatalf("template does not decode once uncommented: %v", err)
	}
	if cfg.Exam.CheckpointInterval == nil || cfg.Exam.CheckpointInterval.Duration != 30*time.Second {
		t.Fatalf("unexpected checkpoint interval %+v", cfg.Exam.CheckpointInterval)
	}
	if cfg.Serve.PerSubject == nil || *cfg.Serve.PerSubject != defaultPerSubject {
		t.Fatalf("unexpected per-subject %+v", cfg.Serve.PerSubject)
	}
}
