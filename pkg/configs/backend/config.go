package backend

import (
	"time"
)

type BackendConfig struct {
	port    int32
	cluster *WeftClusterConfig
}

func (c *BackendConfig) Port() int32 {
	return c.port
}

func (c *BackendConfig) Cluster() *WeftClusterConfig {
	return c.cluster
}

// Configuration for a weft cluster.
//
// to get `WeftClusterConfig` instance, use `WeftClusterConfigMarshall.TrySeal()` .
type WeftClusterConfig struct {
	database  string
	agent     *AgentConfig
	executors *ExecutorsConfig
	api       *ApiConfig
}

// Connection string for database.
func (c *WeftClusterConfig) Database() string {
	return c.database
}

func (c *WeftClusterConfig) Agent() *AgentConfig {
	return c.agent
}

func (c *WeftClusterConfig) Executors() *ExecutorsConfig {
	return c.executors
}

// nil when the API runs without authentication.
func (c *WeftClusterConfig) Api() *ApiConfig {
	return c.api
}

// Configuration shared by all polling agents.
type AgentConfig struct {
	staleLock        time.Duration
	debounce         time.Duration
	heartbeat        time.Duration
	leaderWindow     time.Duration
	messageRetention time.Duration
}

// age after which another agent may reclaim a row lock.
func (c *AgentConfig) StaleLock() time.Duration {
	return c.staleLock
}

// minimum idle time before re-picking the same transform.
func (c *AgentConfig) Debounce() time.Duration {
	return c.debounce
}

// heartbeat reporting interval.
func (c *AgentConfig) Heartbeat() time.Duration {
	return c.heartbeat
}

// heartbeats older than this lose leader elections.
func (c *AgentConfig) LeaderWindow() time.Duration {
	return c.leaderWindow
}

// how long processed messages are kept before cleanup.
func (c *AgentConfig) MessageRetention() time.Duration {
	return c.messageRetention
}

type ExecutorsConfig struct {
	defaultName string
	kubernetes  *KubernetesExecutorConfig
}

// executor used by transforms that do not name one.
func (c *ExecutorsConfig) DefaultName() string {
	return c.defaultName
}

// nil when the kubernetes backend is not configured.
func (c *ExecutorsConfig) Kubernetes() *KubernetesExecutorConfig {
	return c.kubernetes
}

type KubernetesExecutorConfig struct {
	namespace string
}

// k8s namespace where processing jobs are spawned.
func (c *KubernetesExecutorConfig) Namespace() string {
	return c.namespace
}

type ApiConfig struct {
	bearerKey string
}

// HS256 key verifying bearer tokens on mutating routes.
func (c *ApiConfig) BearerKey() string {
	return c.bearerKey
}
