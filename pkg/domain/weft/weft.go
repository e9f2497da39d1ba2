package weft

import (
	"context"

	bconf "github.com/opst/weft/pkg/configs/backend"
	connk8s "github.com/opst/weft/pkg/conn/k8s"
	"github.com/opst/weft/pkg/domain/executor"
	k8sexec "github.com/opst/weft/pkg/domain/executor/kubernetes"
	noopexec "github.com/opst/weft/pkg/domain/executor/noop"
	dbInterface "github.com/opst/weft/pkg/domain/weft/db"
	"github.com/opst/weft/pkg/domain/weft/db/postgres"
	"k8s.io/client-go/kubernetes"
)

// Weft bundles everything a weft process needs: the store, the executor
// registry and the cluster config.
type Weft interface {
	Config() *bconf.WeftClusterConfig
	Database() dbInterface.WeftDatabase
	Executors() *executor.Registry

	Close() error
}

type weft struct {
	config    *bconf.WeftClusterConfig
	database  dbInterface.WeftDatabase
	executors *executor.Registry
}

// Default connects to the store and, when configured, to kubernetes.
func Default(ctx context.Context, config *bconf.WeftClusterConfig) (Weft, error) {
	var clientset *kubernetes.Clientset
	if config.Executors().Kubernetes() != nil {
		clientset = connk8s.ConnectToK8s()
	}
	return New(ctx, config, clientset)
}

func New(
	ctx context.Context,
	config *bconf.WeftClusterConfig,
	clientset kubernetes.Interface,
) (Weft, error) {
	database, err := postgres.New(ctx, config.Database())
	if err != nil {
		return nil, err
	}

	executors := executor.NewRegistry(noopexec.New())
	if kconf := config.Executors().Kubernetes(); kconf != nil && clientset != nil {
		executors.Register(k8sexec.New(clientset, kconf.Namespace()))
	}

	// the configured default must resolve; fail before any loop starts.
	if _, err := executors.Get(config.Executors().DefaultName()); err != nil {
		database.Close()
		return nil, err
	}

	return &weft{
		config:    config,
		database:  database,
		executors: executors,
	}, nil
}

func (w *weft) Config() *bconf.WeftClusterConfig {
	return w.config
}

func (w *weft) Database() dbInterface.WeftDatabase {
	return w.database
}

func (w *weft) Executors() *executor.Registry {
	return w.executors
}

func (w *weft) Close() error {
	return w.database.Close()
}
