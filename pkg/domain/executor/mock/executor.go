package mock

import (
	"context"
	"testing"

	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/domain/executor"
)

type MockExecutor struct {
	t    *testing.T
	name string
	Impl struct {
		Submit func(ctx context.Context, tr domain.Transform, p domain.Processing) (string, error)
		Poll   func(ctx context.Context, p domain.Processing) (executor.Report, error)
		Cancel func(ctx context.Context, p domain.Processing) error
	}
}

var _ executor.Executor = &MockExecutor{}

func New(t *testing.T, name string) *MockExecutor {
	return &MockExecutor{t: t, name: name}
}

func (m *MockExecutor) Name() string {
	return m.name
}

func (m *MockExecutor) Submit(ctx context.Context, tr domain.Transform, p domain.Processing) (string, error) {
	if m.Impl.Submit == nil {
		m.t.Fatal("Submit is not implemented")
	}
	return m.Impl.Submit(ctx, tr, p)
}

func (m *MockExecutor) Poll(ctx context.Context, p domain.Processing) (executor.Report, error) {
	if m.Impl.Poll == nil {
		m.t.Fatal("Poll is not implemented")
	}
	return m.Impl.Poll(ctx, p)
}

func (m *MockExecutor) Cancel(ctx context.Context, p domain.Processing) error {
	if m.Impl.Cancel == nil {
		m.t.Fatal("Cancel is not implemented")
	}
	return m.Impl.Cancel(ctx, p)
}
