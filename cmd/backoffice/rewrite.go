package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"backoffice/internal/mediaproxy"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file|-]",
	Short: "Rewrite a playlist so every reference goes through the media proxy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := lo.Must(cmd.Flags().GetString("url"))
		prefix := lo.Must(cmd.Flags().GetString("prefix"))
		if target == "" {
			return errors.New("--url is required")
		}
		if !mediaproxy.ValidTarget(target) {
			return fmt.Errorf("invalid --url %q", target)
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		body, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), mediaproxy.Rewrite(string(body), target, prefix))
		return err
	},
}

func init() {
	rewriteCmd.Flags().StringP("url", "u", "", "Absolute URL the playlist was fetched from")
	rewriteCmd.Flags().String("prefix", "/proxy-stream", "Proxy path prefix")
}
