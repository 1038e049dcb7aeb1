package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/canonical/sqliteweb/internal/coordinator"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch and render a running tab's debug /status snapshot",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://127.0.0.1:8080", "base address of the tab's debug API")
}

func runStatus(_ *cobra.Command, _ []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(statusAddr + "/status")
	if err != nil {
		return fmt.Errorf("status: fetch %s/status: %w", statusAddr, err)
	}
	defer resp.Body.Close()

	var snap coordinator.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("status: decode response: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Worker ID", snap.WorkerID})
	table.Append([]string{"Role", snap.Role})
	table.Append([]string{"Known leader", snap.KnownLeaderID})
	table.Append([]string{"Leader ready", fmt.Sprintf("%t", snap.LeaderReady)})
	table.Append([]string{"Ready signaled", fmt.Sprintf("%t", snap.ReadySignaled)})
	table.Append([]string{"DB worker ready", fmt.Sprintf("%t", snap.DBWorkerReady)})
	table.Append([]string{"Pending DB jobs", fmt.Sprintf("%d", snap.PendingDBJobs)})
	table.Append([]string{"Pending follower queries", fmt.Sprintf("%d", snap.PendingFollower)})
	table.Render()

	return nil
}
