package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/agentgate/server"
	"github.com/sweetpotato0/agentgate/session"
)

type statusOutput struct {
	ActiveSessions []string             `json:"activeSessions"`
	Queued         []session.QueueEntry `json:"queued"`
}

func newStatusCmd() *cobra.Command {
	var (
		url     string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show active sessions and the wait queue of a running gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: timeout}
			base := strings.TrimRight(url, "/")

			var active server.SessionStatusResponse
			if err := getJSON(cmd, client, base+"/api/session-status", &active); err != nil {
				return err
			}
			var queue server.QueueStatusResponse
			if err := getJSON(cmd, client, base+"/api/queue-status", &queue); err != nil {
				return err
			}
			out := statusOutput{ActiveSessions: active.ActiveSessions, Queued: queue.Queued}
			return writeStatus(cmd, out, asJSON)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:3000", "gateway base URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func getJSON(cmd *cobra.Command, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func writeStatus(cmd *cobra.Command, out statusOutput, asJSON bool) error {
	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "active sessions: %d\n", len(out.ActiveSessions))
	for _, id := range out.ActiveSessions {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	fmt.Fprintf(&b, "queued: %d\n", len(out.Queued))
	for i, e := range out.Queued {
		fmt.Fprintf(&b, "  %d. %s (since %s)\n", i+1, e.SessionID, e.EnqueuedAt.Format(time.RFC3339))
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}
