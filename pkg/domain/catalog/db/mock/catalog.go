package mock

import (
	"context"
	"errors"

	kdb "github.com/opst/weft/pkg/domain/catalog/db"
	"github.com/opst/weft/pkg/domain"
	dbmock "github.com/opst/weft/pkg/domain/internal/db/mock"
)

type CatalogInterface struct {
	Impl struct {
		GetCollections                      func(ctx context.Context, transformId string, relation ...domain.CollectionRelation) ([]domain.Collection, error)
		RegisterOutputContents              func(ctx context.Context, contents []domain.Content) (int, int, error)
		GetMatchContents                    func(ctx context.Context, query domain.ContentMatchQuery) ([]domain.Content, error)
		FindContents                        func(ctx context.Context, query domain.ContentFindQuery) ([]domain.Content, error)
		ResolveDependencies                 func(ctx context.Context, requestId string) (int, error)
		GetUpdatedTransformsByContentStatus func(ctx context.Context, status domain.Status) ([]string, error)
		RefreshCollectionCounters           func(ctx context.Context, collId int64) (domain.Collection, error)
	}

	Calls struct {
		GetCollections                      dbmock.CallLog[string]
		RegisterOutputContents              dbmock.CallLog[[]domain.Content]
		GetMatchContents                    dbmock.CallLog[domain.ContentMatchQuery]
		FindContents                        dbmock.CallLog[domain.ContentFindQuery]
		ResolveDependencies                 dbmock.CallLog[string]
		GetUpdatedTransformsByContentStatus dbmock.CallLog[domain.Status]
		RefreshCollectionCounters           dbmock.CallLog[int64]
	}
}

func NewCatalogInterface() *CatalogInterface {
	return &CatalogInterface{}
}

var _ kdb.Interface = &CatalogInterface{}

func (m *CatalogInterface) GetCollections(
	ctx context.Context, transformId string, relation ...domain.CollectionRelation,
) ([]domain.Collection, error) {
	m.Calls.GetCollections = append(m.Calls.GetCollections, transformId)
	if m.Impl.GetCollections != nil {
		return m.Impl.GetCollections(ctx, transformId, relation...)
	}
	panic(errors.New("it should not be called"))
}

func (m *CatalogInterface) RegisterOutputContents(
	ctx context.Context, contents []domain.Content,
) (int, int, error) {
	m.Calls.RegisterOutputContents = append(m.Calls.RegisterOutputContents, contents)
	if m.Impl.RegisterOutputContents != nil {
		return m.Impl.RegisterOutputContents(ctx, contents)
	}
	panic(errors.New("it should not be called"))
}

func (m *CatalogInterface) GetMatchContents(
	ctx context.Context, query domain.ContentMatchQuery,
) ([]domain.Content, error) {
	m.Calls.GetMatchContents = append(m.Calls.GetMatchContents, query)
	if m.Impl.GetMatchContents != nil {
		return m.Impl.GetMatchContents(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *CatalogInterface) FindContents(
	ctx context.Context, query domain.ContentFindQuery,
) ([]domain.Content, error) {
	m.Calls.FindContents = append(m.Calls.FindContents, query)
	if m.Impl.FindContents != nil {
		return m.Impl.FindContents(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *CatalogInterface) ResolveDependencies(ctx context.Context, requestId string) (int, error) {
	m.Calls.ResolveDependencies = append(m.Calls.ResolveDependencies, requestId)
	if m.Impl.ResolveDependencies != nil {
		return m.Impl.ResolveDependencies(ctx, requestId)
	}
	panic(errors.New("it should not be called"))
}

func (m *CatalogInterface) GetUpdatedTransformsByContentStatus(
	ctx context.Context, status domain.Status,
) ([]string, error) {
	m.Calls.GetUpdatedTransformsByContentStatus = append(m.Calls.GetUpdatedTransformsByContentStatus, status)
	if m.Impl.GetUpdatedTransformsByContentStatus != nil {
		return m.Impl.GetUpdatedTransformsByContentStatus(ctx, status)
	}
	panic(errors.New("it should not be called"))
}

func (m *CatalogInterface) RefreshCollectionCounters(
	ctx context.Context, collId int64,
) (domain.Collection, error) {
	m.Calls.RefreshCollectionCounters = append(m.Calls.RefreshCollectionCounters, collId)
	if m.Impl.RefreshCollectionCounters != nil {
		return m.Impl.RefreshCollectionCounters(ctx, collId)
	}
	panic(errors.New("it should not be called"))
}
