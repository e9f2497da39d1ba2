package backend

import (
	"fmt"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/backend.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type BackendConfigMarshall struct {
	Port    int32                      `yaml:"port"`
	Cluster *WeftClusterConfigMarshall `yaml:"cluster"`
}

var _ Marshalled[*BackendConfig] = &BackendConfigMarshall{}

func (b *BackendConfigMarshall) trySeal(path string) *BackendConfig {
	return &BackendConfig{
		port:    required(b.Port, path+".port"),
		cluster: nonnil(b.Cluster, path+".cluster").trySeal(path + ".cluster"),
	}
}

// Configuration of a weft cluster.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `WeftClusterConfig`.
// You can get `WeftClusterConfig` instance with `WeftClusterConfigMarshall.TrySeal()`
type WeftClusterConfigMarshall struct {
	Database  string                   `yaml:"database"`
	Agent     *AgentConfigMarshall     `yaml:"agent"`
	Executors *ExecutorsConfigMarshall `yaml:"executors"`
	Api       *ApiConfigMarshall       `yaml:"api,omitempty"`
}

// verify configuration value and create "readonly" version of this.
//
// IT WILL PANIC if any misconfiguration is found.
func (cm *WeftClusterConfigMarshall) TrySeal() *WeftClusterConfig {
	return cm.trySeal("(root)")
}

func (cm *WeftClusterConfigMarshall) trySeal(path string) *WeftClusterConfig {
	var api *ApiConfig
	if cm.Api != nil {
		api = cm.Api.trySeal(path + ".api")
	}
	return &WeftClusterConfig{
		database:  required(cm.Database, path+".database"),
		agent:     nonnil(cm.Agent, path+".agent").trySeal(path + ".agent"),
		executors: nonnil(cm.Executors, path+".executors").trySeal(path + ".executors"),
		api:       api,
	}
}

type AgentConfigMarshall struct {
	StaleLock        string `yaml:"staleLock,omitempty"`
	Debounce         string `yaml:"debounce,omitempty"`
	Heartbeat        string `yaml:"heartbeat,omitempty"`
	LeaderWindow     string `yaml:"leaderWindow,omitempty"`
	MessageRetention string `yaml:"messageRetention,omitempty"`
}

func (am *AgentConfigMarshall) trySeal(path string) *AgentConfig {
	return &AgentConfig{
		staleLock:        duration(am.StaleLock, 5*time.Minute, path+".staleLock"),
		debounce:         duration(am.Debounce, 10*time.Second, path+".debounce"),
		heartbeat:        duration(am.Heartbeat, 30*time.Second, path+".heartbeat"),
		leaderWindow:     duration(am.LeaderWindow, 2*time.Minute, path+".leaderWindow"),
		messageRetention: duration(am.MessageRetention, 24*time.Hour, path+".messageRetention"),
	}
}

type ExecutorsConfigMarshall struct {
	Default    string                            `yaml:"default"`
	Kubernetes *KubernetesExecutorConfigMarshall `yaml:"kubernetes,omitempty"`
}

func (em *ExecutorsConfigMarshall) trySeal(path string) *ExecutorsConfig {
	var kubernetes *KubernetesExecutorConfig
	if em.Kubernetes != nil {
		kubernetes = em.Kubernetes.trySeal(path + ".kubernetes")
	}
	return &ExecutorsConfig{
		defaultName: required(em.Default, path+".default"),
		kubernetes:  kubernetes,
	}
}

type KubernetesExecutorConfigMarshall struct {
	Namespace string `yaml:"namespace"`
}

func (km *KubernetesExecutorConfigMarshall) trySeal(path string) *KubernetesExecutorConfig {
	return &KubernetesExecutorConfig{
		namespace: required(km.Namespace, path+".namespace"),
	}
}

type ApiConfigMarshall struct {
	BearerKey string `yaml:"bearerKey"`
}

func (am *ApiConfigMarshall) trySeal(path string) *ApiConfig {
	return &ApiConfig{
		bearerKey: required(am.BearerKey, path+".bearerKey"),
	}
}

func duration(v string, fallback time.Duration, path string) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	return d
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
