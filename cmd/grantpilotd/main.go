package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantpilot/grantpilot/internal/cli"
	"github.com/grantpilot/grantpilot/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grantpilotd",
		Short: "Grantpilot daemon and CLI",
		Long:  "Grantpilot daemon for running the drafting API server and managing approvals and access grants",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ApprovalCmd())
	rootCmd.AddCommand(admin.GrantCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
