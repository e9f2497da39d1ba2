package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
	kdb "github.com/opst/weft/pkg/domain/message/db"
)

type MessageInterface struct {
	Impl struct {
		AddCommand            func(ctx context.Context, command domain.Command) (int64, error)
		RetrieveCommands      func(ctx context.Context, query kdb.CommandQuery, limit int, locking bool, owner string, stale time.Duration) ([]domain.Command, error)
		MarkCommands          func(ctx context.Context, commandId []int64, status domain.MessageStatus) error
		AddEvent              func(ctx context.Context, event domain.Event) (int64, error)
		GetEventForProcessing func(ctx context.Context, eventType domain.EventType, owner string, stale time.Duration) (*domain.Event, error)
		FinishEvent           func(ctx context.Context, eventId int64, ok bool) error
		CleanupProcessed      func(ctx context.Context, retention time.Duration) (int64, error)
	}

	Calls struct {
		AddCommand       dbmock.CallLog[domain.Command]
		RetrieveCommands dbmock.CallLog[kdb.CommandQuery]
		MarkCommands     dbmock.CallLog[struct {
			CommandId []int64
			Status    domain.MessageStatus
		}]
		AddEvent              dbmock.CallLog[domain.Event]
		GetEventForProcessing dbmock.CallLog[domain.EventType]
		FinishEvent           dbmock.CallLog[struct {
			EventId int64
			Ok      bool
		}]
		CleanupProcessed dbmock.CallLog[time.Duration]
	}
}

func NewMessageInterface() *MessageInterface {
	return &MessageInterface{}
}

var _ kdb.Interface = &MessageInterface{}

func (m *MessageInterface) AddCommand(ctx context.Context, command domain.Command) (int64, error) {
	m.Calls.AddCommand = append(m.Calls.AddCommand, command)
	if m.Impl.AddCommand != nil {
		return m.Impl.AddCommand(ctx, command)
	}
	panic(errors.New("it should not be called"))
}

func (m *MessageInterface) RetrieveCommands(
	ctx context.Context, query kdb.CommandQuery, limit int,
	locking bool, owner string, stale time.Duration,
) ([]domain.Command, error) {
	m.Calls.RetrieveCommands = append(m.Calls.RetrieveCommands, query)
	if m.Impl.RetrieveCommands != nil {
		return m.Impl.RetrieveCommands(ctx, query, limit, locking, owner, stale)
	}
	panic(errors.New("it should not be called"))
}

func (m *MessageInterface) MarkCommands(ctx context.Context, commandId []int64, status domain.MessageStatus) error {
	m.Calls.MarkCommands = append(m.Calls.MarkCommands, struct {
		CommandId []int64
		Status    domain.MessageStatus
	}{CommandId: commandId, Status: status})
	if m.Impl.MarkCommands != nil {
		return m.Impl.MarkCommands(ctx, commandId, status)
	}
	panic(errors.New("it should not be called"))
}

func (m *MessageInterface) AddEvent(ctx context.Context, event domain.Event) (int64, error) {
	m.Calls.AddEvent = append(m.Calls.AddEvent, event)
	if m.Impl.AddEvent != nil {
		return m.Impl.AddEvent(ctx, event)
	}
	panic(errors.New("it should not be called"))
}

func (m *MessageInterface) GetEventForProcessing(
	ctx context.Context, eventType domain.EventType,
	owner string, stale time.Duration,
) (*domain.Event, error) {
	m.Calls.GetEventForProcessing = append(m.Calls.GetEventForProcessing, eventType)
	if m.Impl.GetEventForProcessing != nil {
		return m.Impl.GetEventForProcessing(ctx, eventType, owner, stale)
	}
	panic(errors.New("it should not be called"))
}

func (m *MessageInterface) FinishEvent(ctx context.Context, eventId int64, ok bool) error {
	m.Calls.FinishEvent = append(m.Calls.FinishEvent, struct {
		EventId int64
		Ok      bool
	}{EventId: eventId, Ok: ok})
	if m.Impl.FinishEvent != nil {
		return m.Impl.FinishEvent(ctx, eventId, ok)
	}
	panic(errors.New("it should not be called"))
}

func (m *MessageInterface) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	m.Calls.CleanupProcessed = append(m.Calls.CleanupProcessed, retention)
	if m.Impl.CleanupProcessed != nil {
		return m.Impl.CleanupProcessed(ctx, retention)
	}
	panic(errors.New("it should not be called"))
}
