package sshconn

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

// testCacheTTL is how long a connection test result is reused.
const testCacheTTL = 5 * time.Second

type testResult struct {
	ok      bool
	message string
	at      time.Time
}

// Tester checks that a profile can connect and authenticate, then hangs up.
type Tester struct {
	connector session.Connector
	timeout   time.Duration
	ttl       time.Duration
	nowFn     func() time.Time

	mu    sync.Mutex
	cache map[string]testResult
}

func NewTester(connector session.Connector, timeout time.Duration) *Tester {
	return &Tester{
		connector: connector,
		timeout:   timeout,
		ttl:       testCacheTTL,
		nowFn:     time.Now,
		cache:     make(map[string]testResult),
	}
}

// Test connects to t and reports success with a message for the operator.
func (ts *Tester) Test(ctx context.Context, t session.Target) (bool, string) {
	key := fmt.Sprintf("%s@%s", t.Name, t.Addr())

	ts.mu.Lock()
	if r, ok := ts.cache[key]; ok && ts.nowFn().Sub(r.at) < ts.ttl {
		ts.mu.Unlock()
		return r.ok, r.message
	}
	ts.mu.Unlock()

	if ts.timeout > 0 {
		t.Timeout = ts.timeout
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ts.timeout)
		defer cancel()
	}

	r := testResult{ok: true, message: "Connection successful"}
	tr, err := ts.connector.Connect(ctx, t)
	if err != nil {
		r = testResult{ok: false, message: Message(err)}
		log.Printf("[ssh] WARNING: connection test for %s failed: %v", logutil.SanitizeForLog(t.Name), err)
	} else {
		tr.Close()
	}

	r.at = ts.nowFn()
	ts.mu.Lock()
	ts.cache[key] = r
	ts.mu.Unlock()
	return r.ok, r.message
}
