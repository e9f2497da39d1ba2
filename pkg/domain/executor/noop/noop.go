// Package noop is an executor that finishes everything instantly.
// For development and tests.
package noop

import (
	"context"

	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/domain/executor"
)

const Name = "noop"

type noopExecutor struct{}

func New() executor.Executor {
	return noopExecutor{}
}

var _ executor.Executor = noopExecutor{}

func (noopExecutor) Name() string {
	return Name
}

func (noopExecutor) Submit(ctx context.Context, t domain.Transform, p domain.Processing) (string, error) {
	return "noop/" + p.Id, nil
}

func (noopExecutor) Poll(ctx context.Context, p domain.Processing) (executor.Report, error) {
	return executor.Report{Status: domain.Finished}, nil
}

func (noopExecutor) Cancel(ctx context.Context, p domain.Processing) error {
	return nil
}
