package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/ghostd/internal/logging"
	"github.com/sandeepkv93/ghostd/internal/storage"
	"github.com/sandeepkv93/ghostd/internal/store"
	"github.com/sandeepkv93/ghostd/internal/update"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ghostd failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logCfg := logging.ConfigFromEnv()
	if logCfg.FilePath == "" {
		// The TUI owns the terminal; keep logs out of it.
		logCfg.FilePath = os.DevNull
	}
	if err := logging.Init(logCfg); err != nil {
		return err
	}

	cfg := update.RuntimeConfigFromEnv(update.DefaultRuntimeConfig())

	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := storage.MigrateUp(repo.DB()); err != nil {
		return err
	}

	ctrl := store.NewController(repo, time.Duration(cfg.SaveTimeoutSecs)*time.Second)
	if err := ctrl.Load(context.Background()); err != nil {
		return err
	}

	program := tea.NewProgram(update.NewModel(ctrl, cfg))
	if _, err := program.Run(); err != nil {
		return err
	}
	return nil
}
