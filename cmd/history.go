package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"remotefile/core"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the last run of every job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hm := core.NewHistoryManager(historyPath)
		if err := hm.Load(); err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		names := hm.Names()
		if len(names) == 0 {
			pterm.Info.Println("No history found.")
			return nil
		}

		tableData := [][]string{{"Job", "Date", "Status", "Direction", "Remote", "Size", "Error"}}
		for _, name := range names {
			rec, _ := hm.Last(name)

			status := pterm.NewStyle(pterm.FgGreen).Sprint("ok")
			if !rec.Success {
				status = pterm.NewStyle(pterm.FgRed).Sprint("failed")
			}

			tableData = append(tableData, []string{
				name,
				rec.Time.Format("2006-01-02 15:04:05"),
				status,
				rec.Direction,
				rec.Remote,
				humanize.IBytes(uint64(rec.Size)),
				rec.Error,
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
