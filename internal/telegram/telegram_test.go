package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newBotAPIServer fakes the two Bot API methods the client touches.
func newBotAPIServer(t *testing.T, getMeCalls, sendCalls *atomic.Int64, failAuth bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			getMeCalls.Add(1)
			if failAuth {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
				return
			}
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bridge","username":"bridgebot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			sendCalls.Add(1)
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":99}}`)
		default:
			t.Errorf("unexpected bot api call: %s", r.URL.Path)
			fmt.Fprint(w, `{"ok":true,"result":{}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendReplyConnectsLazilyAndCaches(t *testing.T) {
	var getMeCalls, sendCalls atomic.Int64
	srv := newBotAPIServer(t, &getMeCalls, &sendCalls, false)

	c := NewClient(
		WithBotToken("123:abc"),
		WithAPIEndpoint(srv.URL+"/bot%s/%s"),
		WithHTTPClient(srv.Client()),
	)
	if getMeCalls.Load() != 0 {
		t.Error("constructor must not touch the network")
	}

	for i := 0; i < 2; i++ {
		if err := c.SendReply(context.Background(), 1234567, 89, "hi"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if getMeCalls.Load() != 1 {
		t.Errorf("session should be established once, got %d getMe calls", getMeCalls.Load())
	}
	if sendCalls.Load() != 2 {
		t.Errorf("expected 2 sendMessage calls, got %d", sendCalls.Load())
	}
}

func TestSendReplyAuthFailurePropagates(t *testing.T) {
	var getMeCalls, sendCalls atomic.Int64
	srv := newBotAPIServer(t, &getMeCalls, &sendCalls, true)

	c := NewClient(
		WithBotToken("123:bad"),
		WithAPIEndpoint(srv.URL+"/bot%s/%s"),
		WithHTTPClient(srv.Client()),
	)
	err := c.SendReply(context.Background(), 1, 2, "hi")
	if err == nil {
		t.Fatal("authentication failure must propagate")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("expected *AuthError, got %T: %v", err, err)
	}
	if sendCalls.Load() != 0 {
		t.Error("no message may be sent without a session")
	}
}

func TestSendReplyRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	c := NewClient()
	err := c.SendReply(context.Background(), 1, 2, "hi")
	if err == nil {
		t.Fatal("expected error when no token is configured")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("missing token is an authentication fault, got %T: %v", err, err)
	}
}

func TestInteractiveTokenPrompt(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	var getMeCalls, sendCalls atomic.Int64
	srv := newBotAPIServer(t, &getMeCalls, &sendCalls, false)

	c := NewClient(
		WithAPIEndpoint(srv.URL+"/bot%s/%s"),
		WithHTTPClient(srv.Client()),
		WithInteractive(),
	)
	c.cfg.Input = strings.NewReader("123:prompted\n")

	if err := c.SendReply(context.Background(), 1, 2, "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if getMeCalls.Load() != 1 {
		t.Error("prompted token should have been used to connect")
	}
}

func TestInteractiveEmptyTokenFails(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	c := NewClient(WithInteractive())
	c.cfg.Input = strings.NewReader("\n")
	if err := c.SendReply(context.Background(), 1, 2, "hi"); err == nil {
		t.Error("empty prompted token must fail")
	}
}

func TestRunBoundedSuccess(t *testing.T) {
	finished := make(chan struct{})
	err := runBounded(context.Background(), time.Second, func() error {
		defer close(finished)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker did not terminate")
	}
}

func TestRunBoundedError(t *testing.T) {
	want := errors.New("remote said no")
	err := runBounded(context.Background(), time.Second, func() error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected wrapped op error, got %v", err)
	}
}

func TestRunBoundedPanicRecovered(t *testing.T) {
	err := runBounded(context.Background(), time.Second, func() error {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("panic must surface as an error, got %v", err)
	}
}

func TestRunBoundedTimeoutDoesNotLeakWorker(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	err := runBounded(context.Background(), 10*time.Millisecond, func() error {
		defer close(finished)
		<-release
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	// The worker must still run to completion and exit: the buffered
	// result channel means its final send cannot block.
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker leaked after timeout")
	}
}

func TestRunBoundedContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runBounded(ctx, time.Second, func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMockClientRecordsCalls(t *testing.T) {
	m := NewMockClient()
	if err := m.SendReply(context.Background(), 7, 8, "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Calls) != 1 || m.Calls[0] != "7/8" {
		t.Errorf("unexpected calls: %v", m.Calls)
	}
}
