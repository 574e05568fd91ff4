package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusAddr string
	statusTopN int
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://127.0.0.1:8090", "base URL of a running iadsd instance")
	statusCmd.Flags().IntVar(&statusTopN, "top", 10, "number of top-uncertain/unstable entities to show")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current entity count, top-uncertain and top-unstable entities",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	body, err := fetchJSON(fmt.Sprintf("%s/api/status?top=%d", statusAddr, statusTopN))
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(body))
	return nil
}

func fetchJSON(url string) ([]byte, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s: %s", url, resp.Status, body)
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err == nil {
		if formatted, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			return formatted, nil
		}
	}
	return body, nil
}
