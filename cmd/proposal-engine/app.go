// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/pdiddy/proposal-engine/internal/generate"
	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/proposal"
	"github.com/pdiddy/proposal-engine/internal/quality"
	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/internal/store"
)

// app holds the components a subcommand works with.
type app struct {
	store    *store.Store
	pipeline *proposal.Pipeline
}

// openApp opens the store and wires the pipeline. The generation service
// client is only constructed when withGenerator is set, so commands that
// never draft text run without credentials.
func openApp(withGenerator bool) (*app, error) {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	checker, err := quality.New(st, cfg.Quality, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	var gen proposal.Generator
	if withGenerator {
		c, err := llm.New(cfg.Generation.AIConfig, nil)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("generation service: %w", err)
		}
		gen = generate.New(c, cfg.Generation, cfg.Quality, logger)
	}

	r := retrieve.New(st, cfg.Retrieval, logger)
	return &app{
		store:    st,
		pipeline: proposal.NewPipeline(r, gen, checker, cfg, logger).WithLedger(st),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// session loads a stored session by ID or unique ID prefix.
func (a *app) session(ctx context.Context, id string) (*proposal.Session, error) {
	rec, err := a.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return proposal.FromRecord(rec), nil
}

// save writes back the sections this command changed. A section another
// process changed since it was loaded is reported as stale, not overwritten.
func (a *app) save(ctx context.Context, s *proposal.Session) error {
	if err := s.Persist(ctx, a.store); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
