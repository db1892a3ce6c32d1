package cli

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past clone runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent clone runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := a.store.History()
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Source", "Destination", "Type", "Status", "Started", "Duration"})
		for _, e := range entries {
			dur := "-"
			if e.Duration != nil {
				dur = fmt.Sprintf("%ds", *e.Duration)
			}
			table.Append([]string{
				e.ID,
				e.SourceName,
				e.DestinationName,
				string(e.CloneType),
				string(e.Status),
				e.StartedAt.Format("2006-01-02 15:04:05"),
				dur,
			})
		}
		table.Render()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run including its log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := a.store.HistoryEntryByID(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:          %s\n", e.ID)
		fmt.Printf("source:      %s (%s)\n", e.SourceName, e.SourceID)
		fmt.Printf("destination: %s (%s)\n", e.DestinationName, e.DestinationID)
		fmt.Printf("type:        %s\n", e.CloneType)
		fmt.Printf("status:      %s\n", e.Status)
		fmt.Printf("started:     %s\n", e.StartedAt.Format("2006-01-02 15:04:05"))
		if e.CompletedAt != nil {
			fmt.Printf("completed:   %s\n", e.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		if e.Duration != nil {
			fmt.Printf("duration:    %ds\n", *e.Duration)
		}
		if e.ErrorMessage != "" {
			fmt.Printf("error:       %s\n", e.ErrorMessage)
		}
		if len(e.Logs) > 0 {
			fmt.Println("log:")
			for _, line := range e.Logs {
				fmt.Printf("  %s\n", line)
			}
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.store.ClearHistory(); err != nil {
			return err
		}
		fmt.Println("history cleared")
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyClearCmd)
	RootCmd.AddCommand(historyCmd)
}
