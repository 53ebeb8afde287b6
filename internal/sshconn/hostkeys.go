package sshconn

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
)

// HostKeyStore verifies server host keys against an OpenSSH known_hosts
// file. Unknown hosts are appended on first use unless strict is set.
type HostKeyStore struct {
	path   string
	strict bool
	mu     sync.Mutex
}

func NewHostKeyStore(path string, strict bool) *HostKeyStore {
	return &HostKeyStore{path: path, strict: strict}
}

// Callback returns a HostKeyCallback reading the current file contents.
// Without a path every key is accepted, unless strict checking is on.
func (h *HostKeyStore) Callback() (ssh.HostKeyCallback, error) {
	if h.path == "" {
		if h.strict {
			return nil, fmt.Errorf("strict host key checking needs a known_hosts path")
		}
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if err := h.ensureFile(); err != nil {
		return nil, err
	}
	check, err := knownhosts.New(h.path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", h.path, err)
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}
		fp := ssh.FingerprintSHA256(key)
		if len(keyErr.Want) > 0 {
			log.Printf("[ssh] ERROR: host key mismatch for %s: got %s", logutil.SanitizeForLog(hostname), fp)
			return fmt.Errorf("%w: %s presented %s", ErrHostKeyChanged, hostname, fp)
		}
		if h.strict {
			return fmt.Errorf("%w: %s (%s)", ErrHostKeyUnknown, hostname, fp)
		}
		return h.add(hostname, key)
	}, nil
}

func (h *HostKeyStore) ensureFile() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0700); err != nil {
		return fmt.Errorf("create known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return fmt.Errorf("open known_hosts: %w", err)
	}
	return f.Close()
}

func (h *HostKeyStore) add(hostname string, key ssh.PublicKey) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open known_hosts for append: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("append to known_hosts: %w", err)
	}
	log.Printf("[ssh] added %s to known hosts (%s)", logutil.SanitizeForLog(hostname), ssh.FingerprintSHA256(key))
	return nil
}
