package commands

import (
	"tableflip.dev/jot/pkg/engine"
	"tableflip.dev/jot/pkg/store"
)

// loadEngine opens the configured database and starts an engine on it.
// Callers own the returned engine and must Close it.
func loadEngine() (*engine.Engine, store.Config, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, nil, err
	}
	return engine.New(st), cfg, nil
}
