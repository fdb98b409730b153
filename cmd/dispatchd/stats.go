package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// newStatsCmd builds the "stats" subcommand: fetch the statistics snapshot
// from a running dispatchd and print it to stdout.
func newStatsCmd() *cobra.Command {
	var addr string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Fetch the scheduler statistics from a running dispatchd",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, addr, asJSON)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the dispatchd stats server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "fetch the JSON rendering instead of XML")
	return cmd
}

func runStats(cmd *cobra.Command, addr string, asJSON bool) error {
	client := resty.New().
		SetBaseURL(addr).
		SetTimeout(10 * time.Second)

	path := "/stats"
	if asJSON {
		path = "/stats.json"
	}

	resp, err := client.R().Get(path)
	if err != nil {
		return fmt.Errorf("dispatchd: stats request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("dispatchd: stats status %d: %s", resp.StatusCode(), resp.String())
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.String())
	return nil
}
