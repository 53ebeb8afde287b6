package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/z0nyx/Akidzuki-CLI/internal/catalog"
	"github.com/z0nyx/Akidzuki-CLI/internal/config"
	"github.com/z0nyx/Akidzuki-CLI/internal/database"
)

func newListCmd() *cobra.Command {
	var filter catalog.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("sort") {
				filter.SortBy = config.Cfg.SortBy
			}
			profiles, err := openCatalog().List(filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No connections found.")
				return nil
			}
			fmt.Fprintln(out, profileTable(profiles, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.SortBy, "sort", catalog.SortByName, "sort order: name, host, last_used or group")
	cmd.Flags().StringVar(&filter.Group, "group", "", "only profiles in this group")
	cmd.Flags().BoolVar(&filter.FavoritesOnly, "favorites", false, "only favorite profiles")
	cmd.Flags().StringVar(&filter.Text, "filter", "", "substring of name or host")
	return cmd
}

func profileTable(profiles []database.Profile, now time.Time) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "HOST", "PORT", "USER", "GROUP", "FAV", "LAST USED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, p := range profiles {
		fav := ""
		if p.Favorite {
			fav = "*"
		}
		used := "never"
		if p.LastUsed != nil {
			used = humanize.RelTime(*p.LastUsed, now, "ago", "from now")
		}
		t.Row(p.Name, p.Address(), strconv.Itoa(p.Port), p.User, p.Group, fav, used)
	}
	return t.Render()
}

type profileFlags struct {
	name, host, hostname, user, key, group string
	port                                   int
	favorite, askPassword                  bool
}

func (f *profileFlags) bind(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "new profile name")
	}
	cmd.Flags().StringVar(&f.host, "host", "", "host alias or address")
	cmd.Flags().StringVar(&f.hostname, "hostname", "", "address to dial when it differs from --host")
	cmd.Flags().IntVarP(&f.port, "port", "p", 22, "SSH port")
	cmd.Flags().StringVarP(&f.user, "user", "u", "root", "login user")
	cmd.Flags().StringVarP(&f.key, "identity", "i", "", "private key file")
	cmd.Flags().StringVarP(&f.group, "group", "g", "", "group name")
	cmd.Flags().BoolVar(&f.favorite, "favorite", false, "mark as favorite")
	cmd.Flags().BoolVar(&f.askPassword, "password", false, "prompt for a password to store")
}

// apply copies the flags the operator set onto p.
func (f *profileFlags) apply(cmd *cobra.Command, p *database.Profile) {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = f.name
	}
	if changed("host") {
		p.Host = f.host
	}
	if changed("hostname") {
		p.HostName = f.hostname
	}
	if changed("port") {
		p.Port = f.port
	}
	if changed("user") {
		p.User = f.user
	}
	if changed("identity") {
		p.IdentityFile = f.key
	}
	if changed("group") {
		p.Group = f.group
	}
	if changed("favorite") {
		p.Favorite = f.favorite
	}
}

func newAddCmd() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "add NAME --host HOST",
		Short: "Add a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := database.Profile{Name: args[0], Port: flags.port, User: flags.user}
			flags.apply(cmd, &p)
			if err := openCatalog().Add(&p); err != nil {
				return err
			}
			if flags.askPassword {
				if err := storePassword(cmd, &p); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s@%s:%d)\n", p.Name, p.User, p.Address(), p.Port)
			return nil
		},
	}
	flags.bind(cmd, false)
	cmd.MarkFlagRequired("host")
	return cmd
}

func newEditCmd() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Change a profile; only the given flags are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, p, err := getProfile(args[0])
			if err != nil {
				return err
			}
			oldKey := p.SecretKey()
			flags.apply(cmd, p)
			if err := cat.Update(args[0], p); err != nil {
				return err
			}
			if err := catalog.NewCredentialStore().Rekey(oldKey, p.SecretKey()); err != nil {
				return err
			}
			if flags.askPassword {
				if err := storePassword(cmd, p); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", p.Name)
			return nil
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a profile and its stored password",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, p, err := getProfile(args[0])
			if err != nil {
				return err
			}
			if err := cat.Delete(p.Name); err != nil {
				return err
			}
			if err := catalog.NewCredentialStore().Delete(p.SecretKey()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", p.Name)
			return nil
		},
	}
}

func newFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite NAME",
		Short: "Toggle the favorite flag of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fav, err := openCatalog().ToggleFavorite(args[0])
			if err != nil {
				return err
			}
			if fav {
				fmt.Fprintf(cmd.OutOrStdout(), "%s added to favorites\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed from favorites\n", args[0])
			}
			return nil
		},
	}
}

func newPasswdCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "passwd NAME",
		Short: "Store the password (or key passphrase) of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := getProfile(args[0])
			if err != nil {
				return err
			}
			if clear {
				if err := catalog.NewCredentialStore().Delete(p.SecretKey()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password for %s removed\n", p.Name)
				return nil
			}
			return storePassword(cmd, p)
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the stored password")
	return cmd
}

// storePassword prompts without echo and stores the answer. An empty
// answer removes the stored password.
func storePassword(cmd *cobra.Command, p *database.Profile) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("password prompt needs a terminal")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Password for %s@%s: ", p.User, p.Address())
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := catalog.NewCredentialStore().Set(p.SecretKey(), string(secret)); err != nil {
		return err
	}
	if len(secret) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Password for %s removed\n", p.Name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Password for %s stored\n", p.Name)
	}
	return nil
}
