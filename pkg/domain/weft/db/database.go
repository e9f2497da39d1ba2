package db

import (
	kcatalog "github.com/opst/weft/pkg/domain/catalog/db"
	kcondition "github.com/opst/weft/pkg/domain/condition/db"
	khealth "github.com/opst/weft/pkg/domain/health/db"
	kmessage "github.com/opst/weft/pkg/domain/message/db"
	kprocessing "github.com/opst/weft/pkg/domain/processing/db"
	krequest "github.com/opst/weft/pkg/domain/request/db"
	kthrottle "github.com/opst/weft/pkg/domain/throttle/db"
	ktransform "github.com/opst/weft/pkg/domain/transform/db"
)

type WeftDatabase interface {
	Request() krequest.Interface
	Transform() ktransform.Interface
	Processing() kprocessing.Interface
	Condition() kcondition.Interface
	Catalog() kcatalog.Interface
	Message() kmessage.Interface
	Throttle() kthrottle.Interface
	Health() khealth.Interface
	Close() error
}
