package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dbclone/dbclone/internal/pgtools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show where the PostgreSQL client tools were found",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Tool", "Path"})

		missing := false
		for _, tool := range []string{pgtools.PgDump, pgtools.Psql, pgtools.PgRestore} {
			path, err := a.locator.Locate(tool)
			if err != nil {
				var nf *pgtools.NotFoundError
				if errors.As(err, &nf) {
					path = "not found"
				} else {
					path = err.Error()
				}
				missing = true
			}
			table.Append([]string{tool, path})
		}
		table.Render()

		if version, err := a.locator.ClientVersion(); err == nil {
			fmt.Println(version)
		}
		if missing {
			return fmt.Errorf("one or more client tools are missing")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(toolsCmd)
}
