package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"podlab/internal/config"
)

func newDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default-config",
		Short: "Print the default configuration as YAML",
		Long: `Prints the built-in configuration, including the default preset, as a
starting point for ~/.config/podlab/config.yaml or ./.podlab/config.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.TemplateBasic()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}
