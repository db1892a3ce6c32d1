package cli

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dbclone/dbclone/internal/profile"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage profile tags",
}

var tagColor string

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := profile.NewTag(args[0], tagColor)
		if err := a.store.AddTag(t); err != nil {
			return err
		}
		fmt.Printf("tag %q added (%s)\n", t.Name, t.ID)
		return nil
	},
}

var tagEditFlags struct {
	name  string
	color string
}

var tagEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update a tag's name or color",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := a.store.Tags()
		if err != nil {
			return err
		}
		var t *profile.Tag
		for i := range tags {
			if tags[i].ID == args[0] {
				t = &tags[i]
				break
			}
		}
		if t == nil {
			return fmt.Errorf("no tag with id %q", args[0])
		}

		f := cmd.Flags()
		if f.Changed("name") {
			t.Name = tagEditFlags.name
		}
		if f.Changed("color") {
			t.Color = tagEditFlags.color
		}

		if err := a.store.UpdateTag(*t); err != nil {
			return err
		}
		fmt.Printf("tag %q updated\n", t.Name)
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := a.store.Tags()
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "Color"})
		for _, t := range tags {
			table.Append([]string{t.ID, t.Name, t.Color})
		}
		table.Render()
		return nil
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a tag and detach it from profiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.store.DeleteTag(args[0]); err != nil {
			return err
		}
		fmt.Println("tag deleted")
		return nil
	},
}

func init() {
	tagAddCmd.Flags().StringVar(&tagColor, "color", "#808080", "Display color")

	ef := tagEditCmd.Flags()
	ef.StringVar(&tagEditFlags.name, "name", "", "New tag name")
	ef.StringVar(&tagEditFlags.color, "color", "", "New display color")

	tagCmd.AddCommand(tagAddCmd, tagEditCmd, tagListCmd, tagRmCmd)
	RootCmd.AddCommand(tagCmd)
}
