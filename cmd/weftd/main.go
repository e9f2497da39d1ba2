package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/labstack/echo/v4"

	configs "github.com/opst/weft/pkg/configs/backend"
	wdbpg "github.com/opst/weft/pkg/domain/weft/db/postgres"
	"github.com/opst/weft/pkg/utils/echoutil"
	"github.com/opst/weft/pkg/utils/try"

	"github.com/opst/weft/cmd/weftd/handlers"
)

func main() {
	logger := log.Default()

	configPath := flag.String(
		"config", os.Getenv("WEFT_BACKEND_CONFIG"), "path to config file",
	)
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	conf := try.To(configs.LoadBackendConfig(*configPath)).OrFatal(logger)
	cluster := conf.Cluster()

	ctx := context.Background()
	db := try.To(wdbpg.New(ctx, cluster.Database())).OrFatal(logger)
	defer db.Close()

	e := echo.New()
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	// mutating routes require a bearer token when an API key is
	// configured; reads stay open either way.
	mutating := []echo.MiddlewareFunc{}
	if api := cluster.Api(); api != nil {
		mutating = append(mutating, handlers.BearerAuth(api.BearerKey()))
	}

	{
		requestId := "requestId"
		e.POST("/api/requests", handlers.RequestRegisterHandler(db.Request()), mutating...)
		e.GET("/api/requests", handlers.FindRequestHandler(db.Request()))
		e.GET(
			"/api/requests/:requestId",
			handlers.GetRequestHandler(db.Request(), db.Transform(), requestId),
		)
		e.PUT(
			"/api/requests/:requestId/lifetime",
			handlers.ExtendLifetimeHandler(db.Request(), requestId),
			mutating...,
		)
		e.DELETE(
			"/api/requests/:requestId",
			handlers.AbortRequestHandler(db.Request(), db.Message(), requestId),
			mutating...,
		)
	}

	{
		e.GET("/api/transforms", handlers.FindTransformHandler(db.Transform()))
		e.GET(
			"/api/transforms/:transformId",
			handlers.GetTransformHandler(db.Transform(), "transformId"),
		)
		e.GET("/api/processings", handlers.FindProcessingHandler(db.Processing()))
	}

	{
		e.GET("/api/collections", handlers.FindCollectionHandler(db.Catalog(), db.Transform()))
		e.GET("/api/contents", handlers.FindContentHandler(db.Catalog()))
		e.POST("/api/contents", handlers.RegisterContentHandler(db.Catalog()), mutating...)
		e.GET("/api/contents/match", handlers.MatchContentHandler(db.Catalog()))
	}

	{
		e.POST("/api/commands", handlers.PostCommandHandler(db.Message()), mutating...)
		e.POST("/api/events", handlers.PostEventHandler(db.Message()), mutating...)
	}

	{
		e.POST("/api/health", handlers.PostHealthHandler(db.Health()), mutating...)
		e.GET("/api/health", handlers.FindHealthHandler(db.Health()))
		e.GET("/api/health/leader", handlers.GetLeaderHandler(db.Health()))

		e.GET("/api/throttles", handlers.ListThrottleHandler(db.Throttle()))
		e.PUT(
			"/api/throttles/:site",
			handlers.PutThrottleHandler(db.Throttle(), "site"),
			mutating...,
		)
	}

	logger.Println("registered routes:")
	for _, r := range e.Routes() {
		logger.Println(r.Method, r.Path)
	}

	addr := fmt.Sprintf(":%d", conf.Port())
	cert, key := *pcert, *pkey
	if cert != "" && key != "" {
		e.Logger.Fatal(e.StartTLS(addr, cert, key))
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}
