package clients

import (
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientSets is a collection of clientSets and kubeConfig needed
type ClientSets struct {
	KubeClient *kubernetes.Clientset
	KubeConfig *rest.Config
}

// GenerateClientSetFromKubeConfig will generate the kubernetes ClientSet as
// well as the KubeConfig
func (clientSets *ClientSets) GenerateClientSetFromKubeConfig(kubeconfig string) error {
	config, err := getKubeConfig(kubeconfig)
	if err != nil {
		return err
	}
	k8sClientSet, err := kubernetes.NewForConfig(config)
	if err != nil {
		return err
	}
	clientSets.KubeClient = k8sClientSet
	clientSets.KubeConfig = config
	return nil
}

// getKubeConfig setup the config for access cluster resource
func getKubeConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	// It uses in-cluster config, if kubeconfig path is not specified
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}
