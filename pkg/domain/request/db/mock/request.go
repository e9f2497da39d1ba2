package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
	kdb "github.com/opst/weft/pkg/domain/request/db"
)

type RequestInterface struct {
	Impl struct {
		New            func(ctx context.Context, req domain.Request) error
		Get            func(ctx context.Context, requestId []string) (map[string]domain.Request, error)
		GetByWorkload  func(ctx context.Context, scope string, workload string) (domain.Request, error)
		Find           func(ctx context.Context, query domain.RequestFindQuery) ([]string, error)
		PickAndExpand  func(ctx context.Context, owner string, stale time.Duration, expand func(domain.Request) (kdb.Expansion, error)) (string, bool, error)
		SetStatus      func(ctx context.Context, requestId string, newStatus domain.Status) error
		ExtendLifetime func(ctx context.Context, requestId string, until time.Time) error
		RollUp         func(ctx context.Context, requestId string) (domain.Status, error)
		FindExpired    func(ctx context.Context, now time.Time) ([]string, error)
		Delete         func(ctx context.Context, requestId string) error
	}

	Calls struct {
		New           dbmock.CallLog[domain.Request]
		Get           dbmock.CallLog[[]string]
		GetByWorkload dbmock.CallLog[struct {
			Scope    string
			Workload string
		}]
		Find          dbmock.CallLog[domain.RequestFindQuery]
		PickAndExpand dbmock.CallLog[string]
		SetStatus     dbmock.CallLog[struct {
			RequestId string
			NewStatus domain.Status
		}]
		ExtendLifetime dbmock.CallLog[struct {
			RequestId string
			Until     time.Time
		}]
		RollUp      dbmock.CallLog[string]
		FindExpired dbmock.CallLog[time.Time]
		Delete      dbmock.CallLog[string]
	}
}

func NewRequestInterface() *RequestInterface {
	return &RequestInterface{}
}

var _ kdb.Interface = &RequestInterface{}

func (m *RequestInterface) New(ctx context.Context, req domain.Request) error {
	m.Calls.New = append(m.Calls.New, req)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, req)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Get(ctx context.Context, requestId []string) (map[string]domain.Request, error) {
	m.Calls.Get = append(m.Calls.Get, requestId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, requestId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) GetByWorkload(ctx context.Context, scope string, workload string) (domain.Request, error) {
	m.Calls.GetByWorkload = append(m.Calls.GetByWorkload, struct {
		Scope    string
		Workload string
	}{Scope: scope, Workload: workload})
	if m.Impl.GetByWorkload != nil {
		return m.Impl.GetByWorkload(ctx, scope, workload)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Find(ctx context.Context, query domain.RequestFindQuery) ([]string, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) PickAndExpand(
	ctx context.Context, owner string, stale time.Duration,
	expand func(domain.Request) (kdb.Expansion, error),
) (string, bool, error) {
	m.Calls.PickAndExpand = append(m.Calls.PickAndExpand, owner)
	if m.Impl.PickAndExpand != nil {
		return m.Impl.PickAndExpand(ctx, owner, stale, expand)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) SetStatus(ctx context.Context, requestId string, newStatus domain.Status) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		RequestId string
		NewStatus domain.Status
	}{RequestId: requestId, NewStatus: newStatus})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, requestId, newStatus)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) ExtendLifetime(ctx context.Context, requestId string, until time.Time) error {
	m.Calls.ExtendLifetime = append(m.Calls.ExtendLifetime, struct {
		RequestId string
		Until     time.Time
	}{RequestId: requestId, Until: until})
	if m.Impl.ExtendLifetime != nil {
		return m.Impl.ExtendLifetime(ctx, requestId, until)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) RollUp(ctx context.Context, requestId string) (domain.Status, error) {
	m.Calls.RollUp = append(m.Calls.RollUp, requestId)
	if m.Impl.RollUp != nil {
		return m.Impl.RollUp(ctx, requestId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) FindExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.Calls.FindExpired = append(m.Calls.FindExpired, now)
	if m.Impl.FindExpired != nil {
		return m.Impl.FindExpired(ctx, now)
	}
	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Delete(ctx context.Context, requestId string) error {
	m.Calls.Delete = append(m.Calls.Delete, requestId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, requestId)
	}
	panic(errors.New("it should not be called"))
}
