package sshconn

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

const (
	testUser     = "alice"
	testPassword = "s3cret"
	testExitCode = 3
)

// testServer is an in-process SSH server with a scripted shell: input is
// echoed back prefixed with "echo:", "exit" ends the shell with status 3.
type testServer struct {
	addr    string
	hostKey ssh.Signer

	mu       sync.Mutex
	netConns []net.Conn
}

func (ts *testServer) host() string {
	h, _, _ := net.SplitHostPort(ts.addr)
	return h
}

func (ts *testServer) port() int {
	_, p, _ := net.SplitHostPort(ts.addr)
	n, _ := strconv.Atoi(p)
	return n
}

func (ts *testServer) target() session.Target {
	return session.Target{
		Name:     "test",
		Host:     ts.host(),
		Port:     ts.port(),
		User:     testUser,
		Password: testPassword,
		Timeout:  5 * time.Second,
	}
}

// dropConnections forcefully closes every accepted TCP connection.
func (ts *testServer) dropConnections() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, c := range ts.netConns {
		c.Close()
	}
	ts.netConns = nil
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer, priv
}

// startTestServer accepts the test password and, when authorized is not
// nil, that public key.
func startTestServer(t *testing.T, authorized ssh.PublicKey, allowPassword bool) *testServer {
	t.Helper()

	hostKey, _ := newSigner(t)
	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(authorized) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	if allowPassword {
		config.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected")
		}
	}
	config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ts := &testServer{addr: listener.Addr().String(), hostKey: hostKey}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			netConn, err := listener.Accept()
			if err != nil {
				return
			}
			ts.mu.Lock()
			ts.netConns = append(ts.netConns, netConn)
			ts.mu.Unlock()
			go handleTestConnection(netConn, config)
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		ts.dropConnections()
		<-done
	})
	return ts
}

func handleTestConnection(netConn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()

	go func() {
		for req := range reqs {
			if req.WantReply {
				req.Reply(true, nil)
			}
		}
	}()

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleTestShell(ch, requests)
	}
}

func handleTestShell(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			if req.WantReply {
				req.Reply(true, nil)
			}
		case "window-change":
			if len(req.Payload) >= 8 {
				cols := binary.BigEndian.Uint32(req.Payload[0:4])
				rows := binary.BigEndian.Uint32(req.Payload[4:8])
				fmt.Fprintf(ch, "resize:%dx%d\n", cols, rows)
			}
			if req.WantReply {
				req.Reply(true, nil)
			}
		case "shell":
			if req.WantReply {
				req.Reply(true, nil)
			}
			ch.Write([]byte("ready\n"))
			go func() {
				buf := make([]byte, 4096)
				for {
					n, err := ch.Read(buf)
					if n > 0 {
						if strings.Contains(string(buf[:n]), "exit") {
							ch.Write([]byte("bye\n"))
							status := struct{ Status uint32 }{testExitCode}
							ch.SendRequest("exit-status", false, ssh.Marshal(&status))
							ch.Close()
							return
						}
						ch.Write([]byte("echo:"))
						ch.Write(buf[:n])
					}
					if err != nil {
						return
					}
				}
			}()
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func writeKeyFile(t *testing.T, priv ed25519.PrivateKey, passphrase string) string {
	t.Helper()
	var (
		block *pem.Block
		err   error
	)
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestConnector(knownHosts string, strict bool) *Connector {
	c := New(Config{KnownHostsPath: knownHosts, StrictHostKeys: strict, Timeout: 5 * time.Second})
	c.agentSocket = func() string { return "" }
	return c
}

func connectTest(t *testing.T, c *Connector, target session.Target) *Transport {
	t.Helper()
	tr, err := c.Connect(t.Context(), target)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr.(*Transport)
}

func openShell(t *testing.T, tr *Transport) *Channel {
	t.Helper()
	ch, err := tr.OpenInteractiveChannel(session.TermType, 80, 24)
	if err != nil {
		t.Fatalf("OpenInteractiveChannel: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch.(*Channel)
}

// readUntil receives until the accumulated output contains want.
func readUntil(t *testing.T, ch *Channel, want string) string {
	t.Helper()
	var out strings.Builder
	buf := make([]byte, 1024)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !ch.WaitReadable(50 * time.Millisecond) {
			continue
		}
		n, err := ch.Receive(buf)
		out.Write(buf[:n])
		if strings.Contains(out.String(), want) {
			return out.String()
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, session.ErrWouldBlock) {
			t.Fatalf("Receive: %v", err)
		}
	}
	t.Fatalf("timed out waiting for %q, got %q", want, out.String())
	return ""
}
