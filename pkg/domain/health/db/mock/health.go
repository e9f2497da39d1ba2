package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
	kdb "github.com/opst/weft/pkg/domain/health/db"
)

type HealthInterface struct {
	Impl struct {
		AddHealthItem func(ctx context.Context, item domain.HealthItem) error
		SelectAgent   func(ctx context.Context, agent string, newerThan time.Duration) (domain.HealthItem, error)
		Find          func(ctx context.Context, agent string) ([]domain.HealthItem, error)
	}

	Calls struct {
		AddHealthItem dbmock.CallLog[domain.HealthItem]
		SelectAgent   dbmock.CallLog[string]
		Find          dbmock.CallLog[string]
	}
}

func NewHealthInterface() *HealthInterface {
	return &HealthInterface{}
}

var _ kdb.Interface = &HealthInterface{}

func (m *HealthInterface) AddHealthItem(ctx context.Context, item domain.HealthItem) error {
	m.Calls.AddHealthItem = append(m.Calls.AddHealthItem, item)
	if m.Impl.AddHealthItem != nil {
		return m.Impl.AddHealthItem(ctx, item)
	}
	panic(errors.New("it should not be called"))
}

func (m *HealthInterface) SelectAgent(ctx context.Context, agent string, newerThan time.Duration) (domain.HealthItem, error) {
	m.Calls.SelectAgent = append(m.Calls.SelectAgent, agent)
	if m.Impl.SelectAgent != nil {
		return m.Impl.SelectAgent(ctx, agent, newerThan)
	}
	panic(errors.New("it should not be called"))
}

func (m *HealthInterface) Find(ctx context.Context, agent string) ([]domain.HealthItem, error) {
	m.Calls.Find = append(m.Calls.Find, agent)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, agent)
	}
	panic(errors.New("it should not be called"))
}
