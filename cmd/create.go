package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"podlab/internal/config"
	"podlab/internal/kube"
	"podlab/pkg/logging"
)

type createOptions struct {
	name    string
	image   string
	ports   []string
	sshPort uint16
	unique  bool
	attach  bool
	noWait  bool
}

func newCreateCmd() *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create [preset]",
		Short: "Create a throwaway pod",
		Long: `Creates a pod in the current Kubernetes context and waits until it runs.

Without arguments the "default" preset from the config file is used (or a
built-in Alpine pod kept alive by a sleep loop). Naming a preset picks it
from the config file's specs. --image overrides the preset's image for a
quick one-off pod.

Port mappings given with --port are recorded as annotations on the pod, so
a later "podlab port-forward" needs no arguments.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presetName := ""
			if len(args) == 1 {
				presetName = args[0]
			}
			return runCreate(cmd, presetName, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "pod name (default from config)")
	cmd.Flags().StringVar(&opts.image, "image", "", "container image, overriding the preset")
	cmd.Flags().StringArrayVarP(&opts.ports, "port", "p", nil, "port mapping ADDRESS:LOCAL_PORT:CONTAINER_PORT (repeatable)")
	cmd.Flags().Uint16Var(&opts.sshPort, "ssh-port", 0, "container port the pod's sshd listens on")
	cmd.Flags().BoolVar(&opts.unique, "unique", false, "append a random suffix to the pod name")
	cmd.Flags().BoolVar(&opts.attach, "attach", false, "attach to the pod once it runs")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "do not wait for the pod to reach Running")

	return cmd
}

func runCreate(cmd *cobra.Command, presetName string, opts *createOptions) error {
	spec, err := resolveSpec(presetName, opts)
	if err != nil {
		return err
	}

	podName := opts.name
	if podName == "" {
		podName = loadedConfig.DefaultPodName
	}
	if podName == "" {
		podName = config.DefaultPodName
	}
	if opts.unique {
		podName = fmt.Sprintf("%s-%s", podName, uuid.NewString()[:8])
	}

	client, err := newKubeClient()
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	manifest, err := kube.BuildPodManifest(podName, client.Namespace, spec, rootCmd.Version)
	if err != nil {
		return err
	}
	if _, err := client.CreatePod(ctx, manifest); err != nil {
		return err
	}
	fmt.Printf("Pod %s created in namespace %s\n", podName, client.Namespace)

	if opts.noWait {
		return nil
	}

	logging.Info("Create", "Waiting for pod %s to run", podName)
	if _, err := client.WaitUntilRunning(ctx, podName, podWaitTimeout()); err != nil {
		return err
	}
	fmt.Printf("Pod %s is running\n", podName)

	if opts.attach {
		return client.Attach(ctx, podName)
	}
	return nil
}

// resolveSpec turns the preset name and flags into the final pod spec.
func resolveSpec(presetName string, opts *createOptions) (config.Spec, error) {
	var spec config.Spec
	if presetName != "" {
		found := loadedConfig.FindSpecByName(presetName)
		if found == nil {
			return config.Spec{}, fmt.Errorf("no preset named %q in config", presetName)
		}
		spec = *found
	} else {
		spec = loadedConfig.FindDefaultSpec()
	}

	if opts.image != "" {
		spec.Image = opts.image
	}
	if len(spec.Command) == 0 {
		// Keep the container alive; images like alpine exit immediately
		// otherwise.
		spec.Command = []string{"sh"}
		spec.Args = []string{"-c", "while true; do sleep 1; done"}
	}

	for _, raw := range opts.ports {
		mapping, err := config.ParsePortMapping(raw)
		if err != nil {
			return config.Spec{}, err
		}
		spec.PortMappings = append(spec.PortMappings, mapping)
	}
	if opts.sshPort != 0 {
		port := opts.sshPort
		spec.ServicePorts.Merge(config.ServicePorts{SSH: &port})
	}
	return spec, nil
}
