package kube

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client bundles the typed clientset with the rest config the streaming
// endpoints (exec, attach, port-forward) need for SPDY upgrades.
type Client struct {
	Clientset  kubernetes.Interface
	RESTConfig *rest.Config
	// Namespace is the effective namespace: the kubeconfig context's
	// namespace unless overridden.
	Namespace string
}

// For mocking in tests
var newClientConfig = func(kubeContext string) clientcmd.ClientConfig {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	if kubeContext != "" {
		overrides.CurrentContext = kubeContext
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)
}

// NewClient builds a Client from the ambient kubeconfig. An empty kubeContext
// selects the current context; namespaceOverride, when set, replaces the
// context's namespace.
func NewClient(kubeContext, namespaceOverride string) (*Client, error) {
	clientConfig := newClientConfig(kubeContext)

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	namespace := namespaceOverride
	if namespace == "" {
		namespace, _, err = clientConfig.Namespace()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve namespace: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return &Client{
		Clientset:  clientset,
		RESTConfig: restConfig,
		Namespace:  namespace,
	}, nil
}
