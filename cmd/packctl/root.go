package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var actorFlag string

	ctx := newCommandContext(&configFlag, &actorFlag)

	rootCmd := &cobra.Command{
		Use:           "packctl",
		Short:         "Package lifecycle maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Encargado recorded in the audit log")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newAssignCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx, "qualify", "Qualify assigned or reported packages"))
	rootCmd.AddCommand(newBatchCommand(ctx, "deliver", "Deliver qualified packages"))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newProgressCommand(ctx))
	rootCmd.AddCommand(newImportLabelsCommand(ctx))
	rootCmd.AddCommand(newPackersCommand(ctx))
	rootCmd.AddCommand(newNormalizeCommand())

	return rootCmd
}
