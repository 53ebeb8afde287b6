// Package app runs the interactive loop: pick a profile in the menu,
// connect or resume, pump the shell, and come back to the menu on detach.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/z0nyx/Akidzuki-CLI/internal/database"
	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
	"github.com/z0nyx/Akidzuki-CLI/internal/menu"
	"github.com/z0nyx/Akidzuki-CLI/internal/session"
	"github.com/z0nyx/Akidzuki-CLI/internal/sshconn"
)

// Catalog records profile usage.
type Catalog interface {
	MarkUsed(name string) error
}

// Secrets looks up stored passwords by profile secret key.
type Secrets interface {
	Get(key string) (string, error)
}

// MenuFunc shows the selection menu; a nil profile means quit.
type MenuFunc func(opts menu.Options) (*database.Profile, error)

type Config struct {
	Catalog  Catalog
	Secrets  Secrets
	Registry *session.Registry
	Menu     MenuFunc
	// MenuOptions carries the display settings; Detached and Status are
	// filled in by the loop.
	MenuOptions menu.Options
	Timeout     time.Duration
	In          io.Reader
	Out         io.Writer
}

// App is the interactive controller.
type App struct {
	cfg      Config
	in       *bufio.Reader
	out      io.Writer
	detached string // profile name of the retained session, if any
}

func New(cfg Config) *App {
	return &App{
		cfg: cfg,
		in:  bufio.NewReader(cfg.In),
		out: cfg.Out,
	}
}

// TargetFor builds the connection target of a profile.
func TargetFor(p *database.Profile, password string, timeout time.Duration) session.Target {
	return session.Target{
		Name:     p.Name,
		Host:     p.Address(),
		Port:     p.Port,
		User:     p.User,
		Password: password,
		KeyFile:  p.IdentityFile,
		Timeout:  timeout,
	}
}

// LookupTarget resolves a profile's target, including its stored password.
// A missing or unreadable secret is logged and treated as empty.
func LookupTarget(p *database.Profile, secrets Secrets, timeout time.Duration) session.Target {
	password := ""
	if secrets != nil {
		pw, err := secrets.Get(p.SecretKey())
		if err != nil {
			log.Printf("[app] WARNING: read stored password for %s: %v", logutil.SanitizeForLog(p.Name), err)
		}
		password = pw
	}
	return TargetFor(p, password, timeout)
}

// Run loops until the operator quits the menu or ctx ends. Every session
// is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.cfg.Registry.Shutdown()

	status := ""
	for ctx.Err() == nil {
		a.expireIdle()

		opts := a.cfg.MenuOptions
		opts.Detached = a.detached
		opts.Status = status
		p, err := a.cfg.Menu(opts)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		}
		a.expireIdle()
		status = a.runProfile(ctx, p)
	}
	return nil
}

func (a *App) expireIdle() {
	if a.cfg.Registry.ExpireIdle() {
		a.detached = ""
	}
}

// runProfile connects (or resumes) p and runs its shell. It returns the
// status line for the next menu.
func (a *App) runProfile(ctx context.Context, p *database.Profile) string {
	target := LookupTarget(p, a.cfg.Secrets, a.cfg.Timeout)
	reg := a.cfg.Registry

	var sess *session.RemoteSession
	if reg.CanReuse(target) {
		fmt.Fprintf(a.out, "Connection to %s is already active.\n", p.Name)
		if a.confirm("Reconnect to existing session?", true) {
			resumed, err := reg.Resume(target)
			if err != nil {
				fmt.Fprintf(a.out, "Could not resume: %v\n", err)
			} else {
				fmt.Fprintf(a.out, "Reconnecting to %s...\n", p.Name)
				sess = resumed
			}
		}
	}

	if sess == nil {
		reg.CloseSession(true)
		a.detached = ""

		fmt.Fprintf(a.out, "Connecting to %s...\n", p.Name)
		fmt.Fprintf(a.out, "Host: %s:%d\n", target.Host, target.Port)
		fmt.Fprintf(a.out, "User: %s\n\n", target.User)

		connected, err := reg.Connect(ctx, target)
		if err != nil {
			fmt.Fprintf(a.out, "Connection failed: %s\n", sshconn.Message(err))
			a.waitEnter("Press Enter to return to menu...")
			return ""
		}
		sess = connected
		if err := a.cfg.Catalog.MarkUsed(p.Name); err != nil {
			log.Printf("[app] WARNING: %v", err)
		}
	}

	fmt.Fprintln(a.out, "Connected!")
	fmt.Fprintln(a.out, "Press Ctrl+B to return to menu without disconnecting")
	fmt.Fprintln(a.out)

	return a.runShell(ctx, p.Name, sess)
}

func (a *App) runShell(ctx context.Context, name string, sess *session.RemoteSession) string {
	shellCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGHUP)
	state, err := sess.StartInteractiveShell(shellCtx)
	stop()
	if err != nil {
		log.Printf("[app] ERROR: %s: %v", logutil.SanitizeForLog(name), err)
	}

	if state == session.StateDetached {
		a.cfg.Registry.CloseSession(false)
		sess.ClearReturnedToMenu()
		a.detached = name
		return fmt.Sprintf("Detached from %s. Select it again to resume.", name)
	}

	a.cfg.Registry.CloseSession(true)
	a.detached = ""
	fmt.Fprintln(a.out)
	if err != nil {
		fmt.Fprintf(a.out, "Session ended: %v\n", err)
	}
	fmt.Fprintln(a.out, "Disconnected from SSH session.")
	if code, ok := sess.ExitStatus(); ok && code > 0 {
		fmt.Fprintf(a.out, "Remote shell exited with status %d.\n", code)
	}
	if ctx.Err() == nil {
		a.waitEnter("Press Enter to return to menu...")
	}
	return ""
}

// confirm asks a yes/no question; an empty answer or EOF picks def.
func (a *App) confirm(question string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(a.out, "%s %s ", question, hint)
	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func (a *App) waitEnter(prompt string) {
	fmt.Fprintln(a.out, prompt)
	a.in.ReadString('\n')
}
