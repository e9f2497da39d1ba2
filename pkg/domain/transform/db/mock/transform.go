package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
	kdb "github.com/opst/weft/pkg/domain/transform/db"
)

type TransformInterface struct {
	Impl struct {
		Get                  func(ctx context.Context, transformId []string) (map[string]domain.Transform, error)
		Find                 func(ctx context.Context, query domain.TransformFindQuery) ([]string, error)
		PickAndSetStatus     func(ctx context.Context, cursorFrom domain.TransformCursor, owner string, stale time.Duration, task func(domain.Transform) (domain.Status, error)) (domain.TransformCursor, bool, error)
		SetStatus            func(ctx context.Context, transformId string, newStatus domain.Status) error
		SetCurrentProcessing func(ctx context.Context, transformId string, processingId string) error
		CountRetry           func(ctx context.Context, transformId string) (int, error)
		StatusesByInternalId func(ctx context.Context, requestId string) (map[string]domain.Status, error)
		BulkSetStatus        func(ctx context.Context, requestId string, newStatus domain.Status) ([]string, error)
	}

	Calls struct {
		Get              dbmock.CallLog[[]string]
		Find             dbmock.CallLog[domain.TransformFindQuery]
		PickAndSetStatus dbmock.CallLog[domain.TransformCursor]
		SetStatus        dbmock.CallLog[struct {
			TransformId string
			NewStatus   domain.Status
		}]
		SetCurrentProcessing dbmock.CallLog[struct {
			TransformId  string
			ProcessingId string
		}]
		CountRetry           dbmock.CallLog[string]
		StatusesByInternalId dbmock.CallLog[string]
		BulkSetStatus        dbmock.CallLog[struct {
			RequestId string
			NewStatus domain.Status
		}]
	}
}

func NewTransformInterface() *TransformInterface {
	return &TransformInterface{}
}

var _ kdb.Interface = &TransformInterface{}

func (m *TransformInterface) Get(ctx context.Context, transformId []string) (map[string]domain.Transform, error) {
	m.Calls.Get = append(m.Calls.Get, transformId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, transformId)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) Find(ctx context.Context, query domain.TransformFindQuery) ([]string, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) PickAndSetStatus(
	ctx context.Context, cursorFrom domain.TransformCursor,
	owner string, stale time.Duration,
	task func(domain.Transform) (domain.Status, error),
) (domain.TransformCursor, bool, error) {
	m.Calls.PickAndSetStatus = append(m.Calls.PickAndSetStatus, cursorFrom)
	if m.Impl.PickAndSetStatus != nil {
		return m.Impl.PickAndSetStatus(ctx, cursorFrom, owner, stale, task)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) SetStatus(ctx context.Context, transformId string, newStatus domain.Status) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		TransformId string
		NewStatus   domain.Status
	}{TransformId: transformId, NewStatus: newStatus})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, transformId, newStatus)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) SetCurrentProcessing(ctx context.Context, transformId string, processingId string) error {
	m.Calls.SetCurrentProcessing = append(m.Calls.SetCurrentProcessing, struct {
		TransformId  string
		ProcessingId string
	}{TransformId: transformId, ProcessingId: processingId})
	if m.Impl.SetCurrentProcessing != nil {
		return m.Impl.SetCurrentProcessing(ctx, transformId, processingId)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) CountRetry(ctx context.Context, transformId string) (int, error) {
	m.Calls.CountRetry = append(m.Calls.CountRetry, transformId)
	if m.Impl.CountRetry != nil {
		return m.Impl.CountRetry(ctx, transformId)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) StatusesByInternalId(ctx context.Context, requestId string) (map[string]domain.Status, error) {
	m.Calls.StatusesByInternalId = append(m.Calls.StatusesByInternalId, requestId)
	if m.Impl.StatusesByInternalId != nil {
		return m.Impl.StatusesByInternalId(ctx, requestId)
	}
	panic(errors.New("it should not be called"))
}

func (m *TransformInterface) BulkSetStatus(ctx context.Context, requestId string, newStatus domain.Status) ([]string, error) {
	m.Calls.BulkSetStatus = append(m.Calls.BulkSetStatus, struct {
		RequestId string
		NewStatus domain.Status
	}{RequestId: requestId, NewStatus: newStatus})
	if m.Impl.BulkSetStatus != nil {
		return m.Impl.BulkSetStatus(ctx, requestId, newStatus)
	}
	panic(errors.New("it should not be called"))
}
