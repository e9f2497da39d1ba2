package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
	kdb "github.com/opst/weft/pkg/domain/processing/db"
)

type ProcessingInterface struct {
	Impl struct {
		New              func(ctx context.Context, processing domain.Processing) error
		Get              func(ctx context.Context, processingId []string) (map[string]domain.Processing, error)
		Find             func(ctx context.Context, query domain.ProcessingFindQuery) ([]string, error)
		PickAndSetStatus func(ctx context.Context, statuses []domain.Status, owner string, stale time.Duration, task func(domain.Processing) (domain.Status, domain.ProcessingMetadata, error)) (string, bool, error)
		SetStatus        func(ctx context.Context, processingId string, newStatus domain.Status) error
		SetMetadata      func(ctx context.Context, processingId string, metadata domain.ProcessingMetadata) error
	}

	Calls struct {
		New              dbmock.CallLog[domain.Processing]
		Get              dbmock.CallLog[[]string]
		Find             dbmock.CallLog[domain.ProcessingFindQuery]
		PickAndSetStatus dbmock.CallLog[[]domain.Status]
		SetStatus        dbmock.CallLog[struct {
			ProcessingId string
			NewStatus    domain.Status
		}]
		SetMetadata dbmock.CallLog[struct {
			ProcessingId string
			Metadata     domain.ProcessingMetadata
		}]
	}
}

func NewProcessingInterface() *ProcessingInterface {
	return &ProcessingInterface{}
}

var _ kdb.Interface = &ProcessingInterface{}

func (m *ProcessingInterface) New(ctx context.Context, processing domain.Processing) error {
	m.Calls.New = append(m.Calls.New, processing)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, processing)
	}
	panic(errors.New("it should not be called"))
}

func (m *ProcessingInterface) Get(ctx context.Context, processingId []string) (map[string]domain.Processing, error) {
	m.Calls.Get = append(m.Calls.Get, processingId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, processingId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ProcessingInterface) Find(ctx context.Context, query domain.ProcessingFindQuery) ([]string, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ProcessingInterface) PickAndSetStatus(
	ctx context.Context, statuses []domain.Status,
	owner string, stale time.Duration,
	task func(domain.Processing) (domain.Status, domain.ProcessingMetadata, error),
) (string, bool, error) {
	m.Calls.PickAndSetStatus = append(m.Calls.PickAndSetStatus, statuses)
	if m.Impl.PickAndSetStatus != nil {
		return m.Impl.PickAndSetStatus(ctx, statuses, owner, stale, task)
	}
	panic(errors.New("it should not be called"))
}

func (m *ProcessingInterface) SetStatus(ctx context.Context, processingId string, newStatus domain.Status) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		ProcessingId string
		NewStatus    domain.Status
	}{ProcessingId: processingId, NewStatus: newStatus})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, processingId, newStatus)
	}
	panic(errors.New("it should not be called"))
}

func (m *ProcessingInterface) SetMetadata(ctx context.Context, processingId string, metadata domain.ProcessingMetadata) error {
	m.Calls.SetMetadata = append(m.Calls.SetMetadata, struct {
		ProcessingId string
		Metadata     domain.ProcessingMetadata
	}{ProcessingId: processingId, Metadata: metadata})
	if m.Impl.SetMetadata != nil {
		return m.Impl.SetMetadata(ctx, processingId, metadata)
	}
	panic(errors.New("it should not be called"))
}
