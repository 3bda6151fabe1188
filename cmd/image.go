package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"podlab/internal/config"
)

func newImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Work with the images of the configured presets",
	}
	cmd.AddCommand(newImageListCmd())
	return cmd
}

func newImageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the presets and their images",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := loadedConfig.Specs
			if len(specs) == 0 {
				specs = []config.Spec{config.DefaultSpec()}
			}

			nameWidth := len("PRESET")
			imageWidth := len("IMAGE")
			for _, spec := range specs {
				if len(spec.Name) > nameWidth {
					nameWidth = len(spec.Name)
				}
				if len(spec.Image) > imageWidth {
					imageWidth = len(spec.Image)
				}
			}

			fmt.Printf("%-*s  %-*s  %s\n", nameWidth, "PRESET", imageWidth, "IMAGE", "PULL POLICY")
			for _, spec := range specs {
				fmt.Printf("%-*s  %-*s  %s\n", nameWidth, spec.Name, imageWidth, spec.Image, spec.ImagePullPolicy.String())
			}
			return nil
		},
	}
}
