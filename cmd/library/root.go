package main

import (
	"github.com/spf13/cobra"

	"bookledger/internal/app"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Book catalog with single-level undo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newDemoCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (configured from the environment)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New()
			if err != nil {
				return err
			}
			return application.Run()
		},
	}
}
