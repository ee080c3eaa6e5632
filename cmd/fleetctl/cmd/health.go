package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/output"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness and readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}
		failed := false
		for _, path := range []string{"/healthz", "/readyz"} {
			status, err := probe(client, serverURL+path)
			if err != nil {
				output.Error("%s: %v", path, err)
				failed = true
				continue
			}
			output.Success("%s: %s", path, status)
		}
		if failed {
			return fmt.Errorf("health check failed")
		}
		return nil
	},
}

func probe(client *http.Client, url string) (string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("unexpected response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s (%d)", body.Error, resp.StatusCode)
	}
	return body.Status, nil
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
