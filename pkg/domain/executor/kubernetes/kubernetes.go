// Package kubernetes runs each processing as a batch/v1 Job.
package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/domain/executor"
	xe "github.com/opst/weft/pkg/errors"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const Name = "kubernetes"

const (
	labelProcessing = "weft.opst.dev/processing"
	labelTransform  = "weft.opst.dev/transform"
	labelRequest    = "weft.opst.dev/request"
)

// jobTemplate is the executor-specific part of a transform's job spec.
type jobTemplate struct {
	Image   string            `json:"image"`
	Command []string          `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// pod-level failure retries, distinct from weft's transform retry
	// budget. Defaults to 0: weft owns retrying.
	BackoffLimit int32 `json:"backoff_limit,omitempty"`
}

type k8sExecutor struct {
	clientset kubernetes.Interface
	namespace string
}

func New(clientset kubernetes.Interface, namespace string) executor.Executor {
	return &k8sExecutor{clientset: clientset, namespace: namespace}
}

var _ executor.Executor = &k8sExecutor{}

func (e *k8sExecutor) Name() string {
	return Name
}

func jobName(processingId string) string {
	return "weft-proc-" + processingId
}

func (e *k8sExecutor) Submit(
	ctx context.Context, t domain.Transform, p domain.Processing,
) (string, error) {
	var tpl jobTemplate
	if len(t.Spec.JobSpec) != 0 {
		if err := json.Unmarshal(t.Spec.JobSpec, &tpl); err != nil {
			return "", xe.Wrap(err)
		}
	}
	if tpl.Image == "" {
		return "", fmt.Errorf("transform %s: job spec has no image", t.Id)
	}

	env := make([]kubecore.EnvVar, 0, len(tpl.Env)+2)
	for name, value := range tpl.Env {
		env = append(env, kubecore.EnvVar{Name: name, Value: value})
	}
	env = append(
		env,
		kubecore.EnvVar{Name: "WEFT_PROCESSING_ID", Value: p.Id},
		kubecore.EnvVar{Name: "WEFT_TRANSFORM_ID", Value: t.Id},
	)

	backoff := tpl.BackoffLimit
	job := &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      jobName(p.Id),
			Namespace: e.namespace,
			Labels: map[string]string{
				labelProcessing: p.Id,
				labelTransform:  t.Id,
				labelRequest:    t.RequestId,
			},
		},
		Spec: kubebatch.JobSpec{
			BackoffLimit: &backoff,
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{
					Labels: map[string]string{labelProcessing: p.Id},
				},
				Spec: kubecore.PodSpec{
					RestartPolicy: kubecore.RestartPolicyNever,
					Containers: []kubecore.Container{
						{
							Name:    "main",
							Image:   tpl.Image,
							Command: tpl.Command,
							Args:    tpl.Args,
							Env:     env,
						},
					},
				},
			},
		},
	}

	created, err := e.clientset.BatchV1().Jobs(e.namespace).
		Create(ctx, job, kubeapimeta.CreateOptions{})
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			// a crashed submitter got this far before; adopt its job.
			return jobName(p.Id), nil
		}
		return "", xe.Wrap(err)
	}
	return created.Name, nil
}

func (e *k8sExecutor) Poll(ctx context.Context, p domain.Processing) (executor.Report, error) {
	job, err := e.clientset.BatchV1().Jobs(e.namespace).
		Get(ctx, p.Handle, kubeapimeta.GetOptions{})
	if err != nil {
		if kubeerr.IsNotFound(err) {
			return executor.Report{
				Status:  domain.Lost,
				Message: fmt.Sprintf("job %s is gone", p.Handle),
			}, nil
		}
		return executor.Report{}, xe.Wrap(err)
	}

	raw, err := json.Marshal(job.Status)
	if err != nil {
		return executor.Report{}, xe.Wrap(err)
	}

	report := executor.Report{Raw: raw}
	switch {
	case 0 < job.Status.Succeeded:
		report.Status = domain.Finished
	case jobFailed(job):
		report.Status = domain.Failed
		report.Message = failureMessage(job)
	case 0 < job.Status.Active:
		report.Status = domain.Running
	default:
		report.Status = domain.Submitted
	}
	return report, nil
}

func jobFailed(job *kubebatch.Job) bool {
	for _, cond := range job.Status.Conditions {
		if cond.Type == kubebatch.JobFailed && cond.Status == kubecore.ConditionTrue {
			return true
		}
	}
	return false
}

func failureMessage(job *kubebatch.Job) string {
	for _, cond := range job.Status.Conditions {
		if cond.Type == kubebatch.JobFailed && cond.Status == kubecore.ConditionTrue {
			return cond.Message
		}
	}
	return ""
}

func (e *k8sExecutor) Cancel(ctx context.Context, p domain.Processing) error {
	policy := kubeapimeta.DeletePropagationBackground
	err := e.clientset.BatchV1().Jobs(e.namespace).
		Delete(ctx, p.Handle, kubeapimeta.DeleteOptions{PropagationPolicy: &policy})
	if err != nil && !kubeerr.IsNotFound(err) {
		return xe.Wrap(err)
	}
	return nil
}
