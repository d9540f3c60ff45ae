package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusfuel/healthos-engine/internal/config"
	"github.com/campusfuel/healthos-engine/internal/engine"
	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/logging"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend *state.SQLiteBackend
	store   *state.Store
	journal *logging.Journal
	engine  *engine.Engine
}

// openApp loads configuration from the command's flags and opens storage.
func openApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Storage.Path, _ = cmd.Flags().GetString("db")
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	logger, _, err := logging.NewLogger(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	backend, err := state.NewSQLiteBackend(cfg.Storage.Path)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open store %s: %w", cfg.Storage.Path, err)
	}
	store := state.NewStore(backend, nil)
	journal := logging.NewJournal(backend.DB())

	eng := engine.New(store, engine.Config{
		Learning:         update.Config{LearningRate: cfg.Learning.LearningRate},
		Gate:             gate.Config{MaxStep: cfg.Learning.MaxStep},
		Ranking:          rank.Options{ConflictPenalty: cfg.Ranking.ConflictPenalty},
		BatchConcurrency: cfg.Learning.BatchConcurrency,
	}, journal, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		store:   store,
		journal: journal,
		engine:  eng,
	}, nil
}

func (a *app) Close() error {
	a.logger.Sync()
	return a.backend.Close()
}
