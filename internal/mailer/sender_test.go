package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskpulse/internal/config"
)

type fakeSender struct {
	err  error
	sent []Digest
}

func (f *fakeSender) Send(_ context.Context, d Digest) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, d)
	return nil
}

func TestMultiSender(t *testing.T) {
	t.Parallel()

	ok := &fakeSender{}
	skip := &fakeSender{err: ErrNoRecipient}
	if err := (MultiSender{skip, ok}).Send(context.Background(), Digest{ID: "x"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ok.sent) != 1 {
		t.Fatalf("expected delivery through the second sender")
	}

	if err := (MultiSender{skip}).Send(context.Background(), Digest{}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}

	boom := errors.New("boom")
	if err := (MultiSender{ok, &fakeSender{err: boom}}).Send(context.Background(), Digest{}); !errors.Is(err, boom) {
		t.Fatalf("expected joined failure, got %v", err)
	}
}

func TestSMTPSenderMessage(t *testing.T) {
	t.Parallel()

	s, err := NewSMTPSender(config.SMTPConfig{Address: "smtp.example.com", Port: 2525, From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	d := Digest{ID: "abc", Name: "Ann", To: "ann@example.com", Subject: "1 card due today - Focus", Tasks: []DigestTask{{Title: "Ship", DueOn: "2024-03-05"}}}
	msg, err := s.message(d)
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	got := buf.String()
	for _, want := range []string{
		"noreply@example.com",
		"ann@example.com",
		"Subject: 1 card due today - Focus",
		"<abc@taskpulse>",
		"multipart/alternative",
		"Ship",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("message missing %q:\n%s", want, got)
		}
	}

	if err := s.Send(context.Background(), Digest{ID: "no-mail"}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSMTPSenderGivesUpOnSilentServer(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// Accept and never greet.
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	s, err := NewSMTPSender(config.SMTPConfig{Address: "127.0.0.1", Port: addr.Port, From: "noreply@example.com", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Send(ctx, Digest{ID: "stuck", To: "ann@example.com", Subject: "s"}) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from a silent server")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("send still blocked after its deadline")
	}
}

type fakeTelegram struct {
	sent []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramSender(t *testing.T) {
	t.Parallel()

	api := &fakeTelegram{}
	s := &TelegramSender{api: api}

	if err := s.Send(context.Background(), Digest{ID: "a"}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	if err := s.Send(context.Background(), Digest{ID: "b", TelegramID: 77, Subject: "1 card due today - Focus"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages", len(api.sent))
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", api.sent[0])
	}
	if msg.ChatID != 77 || msg.ParseMode != tgbotapi.ModeHTML || !strings.Contains(msg.Text, "<b>1 card due today - Focus</b>") {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestTelegramSenderTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"taskpulse","username":"taskpulse_bot"}}`)
			return
		}
		// The server only notices a client disconnect once the body is read.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	// Registered after srv.Close, so it runs first and frees the handler.
	t.Cleanup(func() { close(release) })

	s, err := newTelegramSender("token", srv.URL+"/bot%s/%s", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), Digest{ID: "slow", TelegramID: 77, Subject: "s"}) }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a timeout error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("send still blocked after the client timeout")
	}
}
