// Package pipeline composes named stages into a dependency graph and runs
// them with maximal concurrency.
package pipeline

import (
	"context"
)

// Stage is one unit of work in a task graph.
type Stage interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

type funcStage struct {
	name, description string
	fn                func(ctx context.Context) error
}

func (s *funcStage) Name() string                  { return s.name }
func (s *funcStage) Description() string           { return s.description }
func (s *funcStage) Run(ctx context.Context) error { return s.fn(ctx) }

// Func adapts a function into a Stage.
func Func(name, description string, fn func(ctx context.Context) error) Stage {
	return &funcStage{name: name, description: description, fn: fn}
}

// Sequence returns a stage running the given stages one after another under
// a single name. It stops at the first error.
func Sequence(name, description string, stages ...Stage) Stage {
	return Func(name, description, func(ctx context.Context) error {
		for _, s := range stages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
