package targets

import (
	"context"
	"fmt"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/log"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// PodRegistry lists the pods matching a label selector as the eligible
// population. Only running pods are eligible, a pod already down is not a
// meaningful chaos target.
type PodRegistry struct {
	client    kubernetes.Interface
	namespace string
}

// NewPodRegistry creates a registry over the pods of one namespace
func NewPodRegistry(client kubernetes.Interface, namespace string) *PodRegistry {
	return &PodRegistry{client: client, namespace: namespace}
}

// ListEligible returns the names of the running pods matching the selector
func (r *PodRegistry) ListEligible(ctx context.Context, selector string) ([]string, error) {
	pods, err := r.client.CoreV1().Pods(r.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Target:    selector,
			Reason:    fmt.Sprintf("unable to list pods: %v", err),
		}
	}

	var eligible []string
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodRunning {
			eligible = append(eligible, pod.Name)
		}
	}
	log.Infof("[Targets]: Found %v running pod(s) for selector '%v' in namespace '%v'", len(eligible), selector, r.namespace)
	return eligible, nil
}
