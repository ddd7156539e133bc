package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "backoffice",
	Short:         "Operator dashboard, media proxy and stream checker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, rewriteCmd, checkCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "backoffice: %s\n", strings.Trim(err.Error(), " \n"))
		os.Exit(1)
	}
}
