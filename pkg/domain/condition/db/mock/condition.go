package mock

import (
	"context"
	"errors"

	kdb "github.com/opst/weft/pkg/domain/condition/db"
	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
)

type ConditionInterface struct {
	Impl struct {
		ListByRequest func(ctx context.Context, requestId string, status ...domain.ConditionStatus) ([]domain.Condition, error)
		Fire          func(ctx context.Context, conditionId int64, result map[string]domain.Status, clones []domain.Transform) ([]string, bool, error)
		BulkSetStatus func(ctx context.Context, requestId string, newStatus domain.ConditionStatus) error
	}

	Calls struct {
		ListByRequest dbmock.CallLog[string]
		Fire          dbmock.CallLog[int64]
		BulkSetStatus dbmock.CallLog[struct {
			RequestId string
			NewStatus domain.ConditionStatus
		}]
	}
}

func NewConditionInterface() *ConditionInterface {
	return &ConditionInterface{}
}

var _ kdb.Interface = &ConditionInterface{}

func (m *ConditionInterface) ListByRequest(
	ctx context.Context, requestId string, status ...domain.ConditionStatus,
) ([]domain.Condition, error) {
	m.Calls.ListByRequest = append(m.Calls.ListByRequest, requestId)
	if m.Impl.ListByRequest != nil {
		return m.Impl.ListByRequest(ctx, requestId, status...)
	}
	panic(errors.New("it should not be called"))
}

func (m *ConditionInterface) Fire(
	ctx context.Context, conditionId int64,
	result map[string]domain.Status, clones []domain.Transform,
) ([]string, bool, error) {
	m.Calls.Fire = append(m.Calls.Fire, conditionId)
	if m.Impl.Fire != nil {
		return m.Impl.Fire(ctx, conditionId, result, clones)
	}
	panic(errors.New("it should not be called"))
}

func (m *ConditionInterface) BulkSetStatus(
	ctx context.Context, requestId string, newStatus domain.ConditionStatus,
) error {
	m.Calls.BulkSetStatus = append(m.Calls.BulkSetStatus, struct {
		RequestId string
		NewStatus domain.ConditionStatus
	}{RequestId: requestId, NewStatus: newStatus})
	if m.Impl.BulkSetStatus != nil {
		return m.Impl.BulkSetStatus(ctx, requestId, newStatus)
	}
	panic(errors.New("it should not be called"))
}
