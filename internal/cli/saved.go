package cli

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage saved clone operations",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := a.store.SavedOperations()
		if err != nil {
			return err
		}
		profileName := func(id string) string {
			p, err := a.store.ProfileByID(id)
			if err != nil {
				return id
			}
			return p.Name
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Source", "Destination", "Type", "Clean", "Backup"})
		for _, op := range ops {
			table.Append([]string{
				op.Name,
				profileName(op.SourceID),
				profileName(op.DestinationID),
				op.CloneType,
				fmt.Sprint(op.CleanDestination),
				fmt.Sprint(op.CreateBackup),
			})
		}
		table.Render()
		return nil
	},
}

var savedRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a saved operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := a.store.SavedOperationByName(args[0])
		if err != nil {
			return err
		}
		if err := a.store.DeleteSavedOperation(op.ID); err != nil {
			return err
		}
		fmt.Printf("saved operation %q deleted\n", op.Name)
		return nil
	},
}

func init() {
	savedCmd.AddCommand(savedListCmd, savedRmCmd)
	RootCmd.AddCommand(savedCmd)
}
