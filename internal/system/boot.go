package system

import (
	"context"
	"errors"
	"fmt"

	"os4/internal/config"
	"os4/internal/logging"
	"os4/internal/store"
)

// Boot builds a System from cfg, plugs in roms and restores the latest
// snapshot when autosave is on. This keeps the wiring the same for the CLI,
// the TUI and tests.
func Boot(ctx context.Context, cfg *config.Config, roms ...*ROM) (*System, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "Boot")
	defer timer.Stop()

	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// 1. Snapshot store
	var opts []Option
	var db *store.Store
	if cfg.Store.DatabasePath != "" {
		var err error
		db, err = store.Open(cfg.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		opts = append(opts, WithStore(db))
	}

	// 2. Core
	s, err := New(cfg, opts...)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	// 3. ROMs
	for _, rom := range roms {
		if err := ctx.Err(); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.Plug(rom); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to plug %s: %w", rom.Name, err)
		}
	}

	// 4. Continuous memory
	if db != nil && cfg.Store.Autosave {
		snap, err := db.Latest()
		switch {
		case err != nil:
			logging.BootWarn("could not read latest snapshot: %v", err)
		case snap == nil:
			logging.Boot("no snapshot, starting with cleared memory")
		default:
			if err := s.Restore(snap); err != nil {
				logging.BootWarn("snapshot %s restored partially: %v", snap.ID, err)
			}
		}
	}
	return s, nil
}

// Close saves continuous memory when autosave is on and releases the
// snapshot store.
func (s *System) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	var errs []error
	if s.cfg.Store.Autosave {
		if _, err := s.Save("autosave"); err != nil {
			errs = append(errs, err)
		}
		if s.cfg.Store.Keep > 0 {
			if _, err := s.db.Prune(s.cfg.Store.Keep); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	s.db = nil

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Store returns the attached snapshot store, or nil.
func (s *System) Store() *store.Store { return s.db }
