package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"podlab/internal/ui"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List podlab pods in the current namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newKubeClient()
			if err != nil {
				return err
			}
			pods, err := client.ListManagedPods(cmdContext(cmd))
			if err != nil {
				return err
			}
			if len(pods) == 0 {
				fmt.Println("No pods found. Create one with `podlab create`.")
				return nil
			}
			fmt.Print(ui.RenderPodTable(pods))
			return nil
		},
	}
}
