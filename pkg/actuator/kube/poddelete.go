package kube

import (
	"context"
	"fmt"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/types"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// ActionPodDelete kills the target pod and relies on its controller to
	// reschedule it
	ActionPodDelete = "pod-delete"
)

// PodDeleteActuator deletes the target pod as its fault. The pod's
// controller restores the replica on its own, so Revert is a no-op and
// trivially idempotent.
type PodDeleteActuator struct {
	client    kubernetes.Interface
	namespace string
	force     bool
}

// NewPodDeleteActuator creates a pod-delete actuator for one namespace.
// force skips the grace period on delete.
func NewPodDeleteActuator(client kubernetes.Interface, namespace string, force bool) *PodDeleteActuator {
	return &PodDeleteActuator{client: client, namespace: namespace, force: force}
}

// Apply deletes the target pod
func (a *PodDeleteActuator) Apply(ctx context.Context, step types.ExperimentStep) error {
	if step.Action != ActionPodDelete {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    step.Target,
			Reason:    fmt.Sprintf("action '%s' not supported by the pod-delete actuator", step.Action),
		}
	}

	opts := metav1.DeleteOptions{}
	if a.force {
		gracePeriod := int64(0)
		opts.GracePeriodSeconds = &gracePeriod
	}

	if err := a.client.CoreV1().Pods(a.namespace).Delete(ctx, step.Target, opts); err != nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInject,
			Target:    fmt.Sprintf("{Pod: %v, Namespace: %v}", step.Target, a.namespace),
			Reason:    fmt.Sprintf("failed to delete pod: %v", err),
		}
	}

	log.Infof("[Chaos]: Deleted the target pod '%v'", step.Target)
	return nil
}

// Revert is a no-op, the pod's controller reschedules the replica
func (a *PodDeleteActuator) Revert(ctx context.Context, step types.ExperimentStep) error {
	log.Infof("[Revert]: Pod '%v' is restored by its controller, nothing to reverse", step.Target)
	return nil
}
