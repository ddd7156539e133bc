package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"backoffice/internal/streamcheck"
	"backoffice/pkg/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check <stream-url>",
	Short: "Play a stream headlessly and report whether it is watchable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout := lo.Must(cmd.Flags().GetDuration("timeout"))
		checker := streamcheck.New(streamcheck.Options{
			Client:       &http.Client{Timeout: timeout},
			MaxFragments: lo.Must(cmd.Flags().GetInt("fragments")),
			UserAgent:    lo.Must(cmd.Flags().GetString("user-agent")),
			Logger:       logger.NewWithWriter(cmd.ErrOrStderr(), lo.Must(cmd.Flags().GetString("log-level"))),
		})

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*timeout)
		defer cancel()
		rep, err := checker.Check(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if !rep.OK {
			return fmt.Errorf("stream not playable: %s", lo.Ternary(rep.Message != "", rep.Message, string(rep.State)))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().IntP("fragments", "n", streamcheck.DefaultMaxFragments, "Fragments to fetch before declaring success")
	checkCmd.Flags().String("user-agent", streamcheck.DefaultUserAgent, "User-Agent sent upstream")
	checkCmd.Flags().Duration("timeout", 30*time.Second, "Per request timeout")
	checkCmd.Flags().String("log-level", "warn", "Log level for progress output on stderr")
}
