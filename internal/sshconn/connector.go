package sshconn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/z0nyx/Akidzuki-CLI/internal/config"
	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

const defaultTimeout = 10 * time.Second

// Config controls how connections are authenticated and verified.
type Config struct {
	KnownHostsPath string
	StrictHostKeys bool
	UseAgent       bool
	// Timeout applies to targets that carry none.
	Timeout time.Duration
}

// Connector dials SSH servers and returns session transports.
type Connector struct {
	cfg      Config
	hostKeys *HostKeyStore
	// agentSocket is looked up per connect; tests override it.
	agentSocket func() string
}

func New(cfg Config) *Connector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Connector{
		cfg:         cfg,
		hostKeys:    NewHostKeyStore(cfg.KnownHostsPath, cfg.StrictHostKeys),
		agentSocket: func() string { return os.Getenv("SSH_AUTH_SOCK") },
	}
}

// FromSettings builds a Connector from the loaded configuration.
func FromSettings(s config.Settings) *Connector {
	return New(Config{
		KnownHostsPath: s.KnownHostsPath,
		StrictHostKeys: s.StrictHostKeys,
		UseAgent:       s.UseAgent,
		Timeout:        s.SSHTimeout,
	})
}

// Connect dials the target and authenticates. Errors are *session.ConnectError.
func (c *Connector) Connect(ctx context.Context, t session.Target) (session.Transport, error) {
	addr := t.Addr()
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	hostKeyCallback, err := c.hostKeys.Callback()
	if err != nil {
		return nil, &session.ConnectError{Kind: session.KindTransport, Target: t.String(), Err: err}
	}

	// Dial before checking credentials so an unreachable host is reported
	// as such.
	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify(t.String(), fmt.Errorf("dial %s: %w", addr, err))
	}

	auth, cleanup := c.authMethods(t)
	defer cleanup()
	if len(auth) == 0 {
		netConn.Close()
		return nil, &session.ConnectError{Kind: session.KindAuthentication, Target: t.String(), Err: ErrNoAuthMethods}
	}

	cfg := &ssh.ClientConfig{
		User:            t.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	// NewClientConn ignores ctx; bound the handshake with a deadline and
	// tear the socket down if ctx ends first.
	netConn.SetDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() { netConn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	stop()
	if err != nil {
		netConn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return nil, classify(t.String(), fmt.Errorf("ssh handshake with %s: %w", addr, err))
	}
	netConn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	log.Printf("[ssh] connected to %s as %s (server %s)", addr,
		logutil.SanitizeForLog(t.User), logutil.SanitizeForLog(string(sshConn.ServerVersion())))
	return newTransport(client, t.String()), nil
}

// authMethods lists the methods to offer, in order. x/crypto/ssh tries each
// method name once, so the identity file and agent keys share one
// publickey method.
func (c *Connector) authMethods(t session.Target) ([]ssh.AuthMethod, func()) {
	var methods []ssh.AuthMethod
	cleanup := func() {}

	var fileSigners []ssh.Signer
	if t.KeyFile != "" {
		signer, err := loadKey(t.KeyFile, t.Password)
		if err != nil {
			log.Printf("[ssh] WARNING: skipping identity file for %s: %v", t.String(), err)
		} else {
			fileSigners = append(fileSigners, signer)
		}
	}

	var agentClient agent.ExtendedAgent
	if c.cfg.UseAgent {
		if sock := c.agentSocket(); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				log.Printf("[ssh] WARNING: ssh-agent unavailable: %v", err)
			} else {
				agentClient = agent.NewClient(conn)
				cleanup = func() { conn.Close() }
			}
		}
	}

	if len(fileSigners) > 0 || agentClient != nil {
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			signers := append([]ssh.Signer(nil), fileSigners...)
			if agentClient != nil {
				agentSigners, err := agentClient.Signers()
				if err != nil {
					log.Printf("[ssh] WARNING: list agent keys: %v", err)
				} else {
					signers = append(signers, agentSigners...)
				}
			}
			return signers, nil
		}))
	}

	if t.Password != "" {
		password := t.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	return methods, cleanup
}

// loadKey reads a private key, using passphrase when the key is encrypted.
func loadKey(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("key %s is encrypted and no passphrase is stored", path)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("decrypt key: %w", err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
