package mock

import (
	"context"
	"errors"

	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
	kdb "github.com/opst/weft/pkg/domain/throttle/db"
)

type ThrottleInterface struct {
	Impl struct {
		Get             func(ctx context.Context, site string) (*domain.Throttle, error)
		List            func(ctx context.Context) ([]domain.Throttle, error)
		Upsert          func(ctx context.Context, throttle domain.Throttle) error
		RefreshCounters func(ctx context.Context, site string) (domain.Throttle, error)
	}

	Calls struct {
		Get             dbmock.CallLog[string]
		List            dbmock.CallLog[struct{}]
		Upsert          dbmock.CallLog[domain.Throttle]
		RefreshCounters dbmock.CallLog[string]
	}
}

func NewThrottleInterface() *ThrottleInterface {
	return &ThrottleInterface{}
}

var _ kdb.Interface = &ThrottleInterface{}

func (m *ThrottleInterface) Get(ctx context.Context, site string) (*domain.Throttle, error) {
	m.Calls.Get = append(m.Calls.Get, site)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, site)
	}
	panic(errors.New("it should not be called"))
}

func (m *ThrottleInterface) List(ctx context.Context) ([]domain.Throttle, error) {
	m.Calls.List = append(m.Calls.List, struct{}{})
	if m.Impl.List != nil {
		return m.Impl.List(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (m *ThrottleInterface) Upsert(ctx context.Context, throttle domain.Throttle) error {
	m.Calls.Upsert = append(m.Calls.Upsert, throttle)
	if m.Impl.Upsert != nil {
		return m.Impl.Upsert(ctx, throttle)
	}
	panic(errors.New("it should not be called"))
}

func (m *ThrottleInterface) RefreshCounters(ctx context.Context, site string) (domain.Throttle, error) {
	m.Calls.RefreshCounters = append(m.Calls.RefreshCounters, site)
	if m.Impl.RefreshCounters != nil {
		return m.Impl.RefreshCounters(ctx, site)
	}
	panic(errors.New("it should not be called"))
}
