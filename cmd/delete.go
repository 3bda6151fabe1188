package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"podlab/internal/ui"
)

func newDeleteCmd() *cobra.Command {
	var deleteAll bool

	cmd := &cobra.Command{
		Use:   "delete [pod-name]",
		Short: "Delete a podlab pod",
		Long: `Deletes a pod created by podlab. Without a name, the configured default
pod is deleted if it exists, otherwise a picker is shown. Pods podlab did
not create are refused.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newKubeClient()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			if deleteAll {
				pods, err := client.ListManagedPods(ctx)
				if err != nil {
					return err
				}
				if len(pods) == 0 {
					fmt.Println("No pods to delete")
					return nil
				}
				for _, pod := range pods {
					if err := client.DeletePod(ctx, pod.Name); err != nil {
						return err
					}
					fmt.Printf("Pod %s deleted\n", pod.Name)
				}
				return nil
			}

			podName, err := resolvePodName(cmd, args)
			if err != nil {
				return err
			}
			if err := client.DeletePod(ctx, podName); err != nil {
				return err
			}
			fmt.Printf("Pod %s deleted\n", podName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteAll, "all", false, "delete every podlab pod in the namespace")
	addPodNameFlag(cmd)
	return cmd
}

// resolvePodName picks the pod a command targets: the positional argument,
// else the -p/--pod-name flag, else the configured default pod when it
// exists, else an interactive picker over the managed pods.
func resolvePodName(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if podNameFlag != "" {
		return podNameFlag, nil
	}

	client, err := newKubeClient()
	if err != nil {
		return "", err
	}
	ctx := cmdContext(cmd)

	if loadedConfig.DefaultPodName != "" {
		if _, err := client.GetPod(ctx, loadedConfig.DefaultPodName); err == nil {
			return loadedConfig.DefaultPodName, nil
		}
	}

	pods, err := client.ListManagedPods(ctx)
	if err != nil {
		return "", err
	}
	return ui.PickPod(pods)
}
