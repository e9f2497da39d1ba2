package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	kpgschema "github.com/opst/weft/pkg/conn/db/postgres/schema"
	kcatalog "github.com/opst/weft/pkg/domain/catalog/db"
	kpgcatalog "github.com/opst/weft/pkg/domain/catalog/db/postgres"
	kcondition "github.com/opst/weft/pkg/domain/condition/db"
	kpgcondition "github.com/opst/weft/pkg/domain/condition/db/postgres"
	khealth "github.com/opst/weft/pkg/domain/health/db"
	kpghealth "github.com/opst/weft/pkg/domain/health/db/postgres"
	kmessage "github.com/opst/weft/pkg/domain/message/db"
	kpgmessage "github.com/opst/weft/pkg/domain/message/db/postgres"
	kprocessing "github.com/opst/weft/pkg/domain/processing/db"
	kpgprocessing "github.com/opst/weft/pkg/domain/processing/db/postgres"
	krequest "github.com/opst/weft/pkg/domain/request/db"
	kpgrequest "github.com/opst/weft/pkg/domain/request/db/postgres"
	kthrottle "github.com/opst/weft/pkg/domain/throttle/db"
	kpgthrottle "github.com/opst/weft/pkg/domain/throttle/db/postgres"
	ktransform "github.com/opst/weft/pkg/domain/transform/db"
	kpgtransform "github.com/opst/weft/pkg/domain/transform/db/postgres"
	dbInterface "github.com/opst/weft/pkg/domain/weft/db"
	xe "github.com/opst/weft/pkg/errors"
)

type weftDBPostgres struct {
	pool *pgxpool.Pool

	request    krequest.Interface
	transform  ktransform.Interface
	processing kprocessing.Interface
	condition  kcondition.Interface
	catalog    kcatalog.Interface
	message    kmessage.Interface
	throttle   kthrottle.Interface
	health     khealth.Interface
}

func New(ctx context.Context, url string) (dbInterface.WeftDatabase, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	p := kpool.Wrap(pool)
	if err := kpgschema.Apply(ctx, p); err != nil {
		pool.Close()
		return nil, xe.Wrap(err)
	}

	return &weftDBPostgres{
		pool:       pool,
		request:    kpgrequest.New(p),
		transform:  kpgtransform.New(p),
		processing: kpgprocessing.New(p),
		condition:  kpgcondition.New(p),
		catalog:    kpgcatalog.New(p),
		message:    kpgmessage.New(p),
		throttle:   kpgthrottle.New(p),
		health:     kpghealth.New(p),
	}, nil
}

func (db *weftDBPostgres) Request() krequest.Interface {
	return db.request
}

func (db *weftDBPostgres) Transform() ktransform.Interface {
	return db.transform
}

func (db *weftDBPostgres) Processing() kprocessing.Interface {
	return db.processing
}

func (db *weftDBPostgres) Condition() kcondition.Interface {
	return db.condition
}

func (db *weftDBPostgres) Catalog() kcatalog.Interface {
	return db.catalog
}

func (db *weftDBPostgres) Message() kmessage.Interface {
	return db.message
}

func (db *weftDBPostgres) Throttle() kthrottle.Interface {
	return db.throttle
}

func (db *weftDBPostgres) Health() khealth.Interface {
	return db.health
}

func (db *weftDBPostgres) Close() error {
	db.pool.Close()
	return nil
}
