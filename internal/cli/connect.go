package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/z0nyx/Akidzuki-CLI/internal/app"
	"github.com/z0nyx/Akidzuki-CLI/internal/catalog"
	"github.com/z0nyx/Akidzuki-CLI/internal/config"
	"github.com/z0nyx/Akidzuki-CLI/internal/database"
	"github.com/z0nyx/Akidzuki-CLI/internal/logging"
	"github.com/z0nyx/Akidzuki-CLI/internal/menu"
	"github.com/z0nyx/Akidzuki-CLI/internal/session"
	"github.com/z0nyx/Akidzuki-CLI/internal/sshconn"
)

const logo = `           _    _     _           _    _
     /\   | |  (_)   | |         | |  (_)
    /  \  | | ___  __| |_____   _| | ___
   / /\ \ | |/ / |/ _` + "`" + ` |_  / | | | |/ / |
  / ____ \|   <| | (_| |/ /| |_| |   <| |
 /_/    \_\_|\_\_|\__,_/___|\__,_|_|\_\_|`

func printBanner(w io.Writer) {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	fmt.Fprintln(w, style.Render(logo))
	fmt.Fprintln(w)
}

// newRegistry wires the session registry from the loaded settings.
func newRegistry(console session.Console) (*session.Registry, error) {
	cfg := config.Cfg
	kind, err := session.ParsePumpKind(cfg.IOStrategy)
	if err != nil {
		return nil, err
	}
	reg := session.NewRegistry(session.RegistryConfig{
		Connector: sshconn.FromSettings(cfg),
		Session: session.Options{
			Console:      console,
			Pump:         kind,
			PollInterval: cfg.PollInterval,
			RecordingDir: cfg.RecordingDir,
			RecordInput:  cfg.RecordInput,
		},
		KeepaliveInterval: cfg.KeepaliveInterval,
		IdleTimeout:       cfg.DetachedIdleTimeout,
	})
	reg.OnStateChange(func(t session.Transition) {
		logging.Debugf("[session] %s %s: %s -> %s (%s)", t.SessionID, t.Label, t.From, t.To, t.Reason)
	})
	return reg, nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	console := session.NewStdConsole()
	defer console.Close()

	reg, err := newRegistry(console)
	if err != nil {
		return err
	}
	cfg := config.Cfg
	cat := openCatalog()

	a := app.New(app.Config{
		Catalog:  cat,
		Secrets:  catalog.NewCredentialStore(),
		Registry: reg,
		Menu: func(opts menu.Options) (*database.Profile, error) {
			return menu.Run(cat, opts)
		},
		MenuOptions: menu.Options{
			SortBy:      cfg.SortBy,
			RecentLimit: cfg.RecentLimit,
			ShowColors:  cfg.ShowColors,
		},
		Timeout: cfg.SSHTimeout,
		In:      os.Stdin,
		Out:     cmd.OutOrStdout(),
	})
	printBanner(cmd.OutOrStdout())
	return a.Run(cmd.Context())
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test NAME",
		Short: "Check that a profile can connect and authenticate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := getProfile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Testing connection: %s\n", p.Name)
			fmt.Fprintf(out, "Host: %s:%d\n\n", p.Address(), p.Port)

			target := app.LookupTarget(p, catalog.NewCredentialStore(), config.Cfg.TestTimeout)
			tester := sshconn.NewTester(sshconn.FromSettings(config.Cfg), config.Cfg.TestTimeout)
			ok, msg := tester.Test(cmd.Context(), target)
			if !ok {
				fmt.Fprintf(out, "✗ %s\n", msg)
				return fmt.Errorf("connection test failed for %s", p.Name)
			}
			fmt.Fprintf(out, "✓ %s\n", msg)
			return nil
		},
	}
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect NAME",
		Short: "Open a shell on a profile without the menu",
		Long: `Connects straight to a profile. Ctrl+B or leaving the shell ends the
command; there is no menu to return to, so the connection is closed either way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, p, err := getProfile(args[0])
			if err != nil {
				return err
			}

			console := session.NewStdConsole()
			defer console.Close()
			reg, err := newRegistry(console)
			if err != nil {
				return err
			}
			defer reg.Shutdown()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting to %s...\n", p.Name)
			fmt.Fprintf(out, "Host: %s:%d\n\n", p.Address(), p.Port)

			target := app.LookupTarget(p, catalog.NewCredentialStore(), config.Cfg.SSHTimeout)
			sess, err := reg.Connect(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("connection failed: %s", sshconn.Message(err))
			}
			if err := cat.MarkUsed(p.Name); err != nil {
				return err
			}

			fmt.Fprintln(out, "Connected!")
			fmt.Fprintln(out, "Press Ctrl+B or exit the shell to disconnect")
			fmt.Fprintln(out)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
			defer stop()
			_, err = sess.StartInteractiveShell(ctx)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Disconnected.")
			return err
		},
	}
}
