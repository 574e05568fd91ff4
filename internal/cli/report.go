package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportAddr string
var reportLimit int

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportAddr, "addr", "http://127.0.0.1:8090", "base URL of a running iadsd instance")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 50, "number of recent events to include")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print recent events, CMAB strategy history, and per-arm statistics",
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	body, err := fetchJSON(fmt.Sprintf("%s/api/report?limit=%d", reportAddr, reportLimit))
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(body))
	return nil
}
