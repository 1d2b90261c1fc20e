package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdUtils "github.com/ninjapay/payments-reconciler/cmd/utils"
)

type VersionCommand struct{}

func (c *VersionCommand) Command(globalOptions *cmdUtils.GlobalOptionsType) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number and git commit",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("payments-reconciler %s", globalOptions.Version)
			if globalOptions.GitCommit != "" {
				fmt.Printf(" (%s)", globalOptions.GitCommit)
			}
			fmt.Println()
		},
	}
}
