package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dbclone/dbclone/internal/inspect"
	"github.com/dbclone/dbclone/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
}

var profileAddFlags struct {
	host     string
	port     int
	database string
	user     string
	password string
	ssl      bool
	tag      string
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := profileAddFlags.password
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = string(raw)
		}

		p := profile.New(args[0], profileAddFlags.host, profileAddFlags.port,
			profileAddFlags.database, profileAddFlags.user, password, profileAddFlags.ssl)
		if profileAddFlags.tag != "" {
			p.TagID = profileAddFlags.tag
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := a.store.AddProfile(p); err != nil {
			return err
		}
		fmt.Printf("profile %q added (%s)\n", p.Name, p.ID)
		return nil
	},
}

var profileEditFlags struct {
	rename   string
	host     string
	port     int
	database string
	user     string
	password string
	ssl      bool
	tag      string
}

var profileEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Update fields of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}

		f := cmd.Flags()
		if f.Changed("rename") {
			p.Name = profileEditFlags.rename
		}
		if f.Changed("host") {
			p.Host = profileEditFlags.host
		}
		if f.Changed("port") {
			p.Port = profileEditFlags.port
		}
		if f.Changed("database") {
			p.Database = profileEditFlags.database
		}
		if f.Changed("user") {
			p.User = profileEditFlags.user
		}
		if f.Changed("password") {
			p.Password = profileEditFlags.password
		}
		if f.Changed("ssl") {
			p.SSL = profileEditFlags.ssl
		}
		if f.Changed("tag") {
			// empty value detaches the tag
			p.TagID = profileEditFlags.tag
		}

		if err := a.store.UpdateProfile(p); err != nil {
			return err
		}
		fmt.Printf("profile %q updated\n", p.Name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connection profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := a.store.Profiles()
		if err != nil {
			return err
		}
		tags, err := a.store.Tags()
		if err != nil {
			return err
		}
		tagNames := make(map[string]string, len(tags))
		for _, t := range tags {
			tagNames[t.ID] = t.Name
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Host", "Port", "Database", "User", "SSL", "Tag"})
		for _, p := range profiles {
			ssl := "no"
			if p.SSL {
				ssl = "yes"
			}
			table.Append([]string{p.Name, p.Host, fmt.Sprint(p.Port), p.Database, p.User, ssl, tagNames[p.TagID]})
		}
		table.Render()
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:       %s\n", p.ID)
		fmt.Printf("name:     %s\n", p.Name)
		fmt.Printf("conn:     %s\n", p.ConnInfo())
		fmt.Printf("ssl:      %v\n", p.SSL)
		fmt.Printf("created:  %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("updated:  %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var profileRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		if err := a.store.DeleteProfile(p.ID); err != nil {
			return err
		}
		fmt.Printf("profile %q deleted\n", p.Name)
		return nil
	},
}

var profileTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Test connectivity and show database stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		pool, err := inspect.Connect(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer pool.Close()

		info, err := inspect.TestConnection(cmd.Context(), pool, p.Database)
		if err != nil {
			return err
		}
		fmt.Printf("server:  %s\n", info.Version)
		fmt.Printf("size:    %s\n", inspect.PrettyBytes(info.TotalSize))
		fmt.Printf("tables:  %d\n", len(info.Tables))
		return nil
	},
}

var profileStructureCmd = &cobra.Command{
	Use:   "structure <name>",
	Short: "Show schemas and tables of the profile's database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveProfile(args[0])
		if err != nil {
			return err
		}
		pool, err := inspect.Connect(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer pool.Close()

		st, err := inspect.Structure(cmd.Context(), pool)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Schema", "Table", "Rows", "Size"})
		for _, t := range st.Tables {
			table.Append([]string{t.Schema, t.Name, fmt.Sprint(t.RowCount), inspect.PrettyBytes(t.Size)})
		}
		table.Render()
		return nil
	},
}

func init() {
	f := profileAddCmd.Flags()
	f.StringVar(&profileAddFlags.host, "host", "localhost", "Server host")
	f.IntVar(&profileAddFlags.port, "port", 5432, "Server port")
	f.StringVar(&profileAddFlags.database, "database", "", "Database name")
	f.StringVar(&profileAddFlags.user, "user", "", "Role name")
	f.StringVar(&profileAddFlags.password, "password", "", "Password (prompted when omitted)")
	f.BoolVar(&profileAddFlags.ssl, "ssl", false, "Require TLS")
	f.StringVar(&profileAddFlags.tag, "tag", "", "Tag id to attach")
	_ = profileAddCmd.MarkFlagRequired("database")
	_ = profileAddCmd.MarkFlagRequired("user")

	ef := profileEditCmd.Flags()
	ef.StringVar(&profileEditFlags.rename, "rename", "", "New profile name")
	ef.StringVar(&profileEditFlags.host, "host", "", "Server host")
	ef.IntVar(&profileEditFlags.port, "port", 0, "Server port")
	ef.StringVar(&profileEditFlags.database, "database", "", "Database name")
	ef.StringVar(&profileEditFlags.user, "user", "", "Role name")
	ef.StringVar(&profileEditFlags.password, "password", "", "New password")
	ef.BoolVar(&profileEditFlags.ssl, "ssl", false, "Require TLS")
	ef.StringVar(&profileEditFlags.tag, "tag", "", "Tag id to attach (empty detaches)")

	profileCmd.AddCommand(profileAddCmd, profileEditCmd, profileListCmd,
		profileShowCmd, profileRmCmd, profileTestCmd, profileStructureCmd)
	RootCmd.AddCommand(profileCmd)
}
