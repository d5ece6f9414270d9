package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/chat"
	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/BTreeMap/TaxPro/internal/testutil"
	"github.com/BTreeMap/TaxPro/internal/twiliowhatsapp"
	"github.com/BTreeMap/TaxPro/internal/whatsapp"
)

type replierFunc func(ctx context.Context, sessionID, text string) (string, error)

func (f replierFunc) Reply(ctx context.Context, sessionID, text string) (string, error) {
	return f(ctx, sessionID, text)
}

func TestProcessResponse_RepliesPerSender(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	var sessions []string
	rh := NewResponseHandler(svc, replierFunc(func(ctx context.Context, sessionID, text string) (string, error) {
		sessions = append(sessions, sessionID)
		return "echo: " + text, nil
	}), "wa:")

	if err := rh.ProcessResponse(context.Background(), "+91 98765 43210", "menu"); err != nil {
		t.Fatalf("ProcessResponse returned error: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != "wa:919876543210" {
		t.Errorf("unexpected session ids %v", sessions)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Body != "echo: menu" {
		t.Errorf("unexpected sent messages %+v", sent)
	}
}

func TestProcessResponse_ReplyErrorSendsApology(t *testing.T) {
	mock := whatsapp.NewMockClient()
	rh := NewResponseHandler(NewWhatsAppService(mock), replierFunc(func(ctx context.Context, sessionID, text string) (string, error) {
		return "", errors.New("store down")
	}), "wa:")

	if err := rh.ProcessResponse(context.Background(), "919876543210", "menu"); err == nil {
		t.Fatal("expected error")
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Body != DefaultErrorMessage {
		t.Errorf("expected apology, got %+v", sent)
	}
}

func TestProcessResponse_InvalidSender(t *testing.T) {
	mock := whatsapp.NewMockClient()
	rh := NewResponseHandler(NewWhatsAppService(mock), replierFunc(func(ctx context.Context, sessionID, text string) (string, error) {
		t.Fatal("replier should not be called")
		return "", nil
	}), "wa:")
	if err := rh.ProcessResponse(context.Background(), "abc", "menu"); err == nil {
		t.Error("expected error")
	}
	if len(mock.Sent()) != 0 {
		t.Error("nothing should be sent")
	}
}

// TestRun_TwilioConversation drives the chat bot end to end through the webhook.
func TestRun_TwilioConversation(t *testing.T) {
	deps := testutil.NewDeps()
	bot := chat.NewBot(assistant.New(deps.Workflows, deps.Sessions, deps.Scheduler))
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	rh := NewResponseHandler(svc, bot, "twilio:")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rh.Run(ctx) }()

	for _, body := range []string{"hi", "1"} {
		rr := postForm(svc.TwilioWebhookHandler, map[string][]string{"From": {"whatsapp:+919876543210"}, "Body": {body}})
		if rr.Code != 200 {
			t.Fatalf("webhook returned %d", rr.Code)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(mock.Sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, assistant.TitleMainMenu) {
		t.Errorf("first reply should show the menu: %q", sent[0].Body)
	}
	if !strings.Contains(sent[1].Body, "Gather Documents") {
		t.Errorf("second reply should show the first step: %q", sent[1].Body)
	}
	if _, err := deps.Sessions.Require(context.Background(), "twilio:919876543210"); err != nil {
		t.Errorf("expected session keyed by sender: %v", err)
	}
}

func TestRun_StopsWhenChannelsClose(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	rh := NewResponseHandler(svc, replierFunc(func(ctx context.Context, sessionID, text string) (string, error) {
		return "", nil
	}), "wa:")
	done := make(chan error, 1)
	go func() { done <- rh.Run(context.Background()) }()
	_ = svc.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

type failingDedup struct{}

func (failingDedup) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	return false, errors.New("dedup table missing")
}

func (failingDedup) MarkProcessed(ctx context.Context, messageID string) error {
	return errors.New("dedup table missing")
}

func countingReplier(calls *int) Replier {
	return replierFunc(func(ctx context.Context, sessionID, text string) (string, error) {
		*calls++
		return "ok", nil
	})
}

func TestHandleResponse_SkipsRedelivery(t *testing.T) {
	mock := whatsapp.NewMockClient()
	calls := 0
	rh := NewResponseHandler(NewWhatsAppService(mock), countingReplier(&calls), "wa:", WithDedup(store.NewInMemoryStore()))

	msg := models.Response{MessageID: "3EB0C767D26A", From: "919876543210", Body: "menu"}
	for i := 0; i < 3; i++ {
		if err := rh.HandleResponse(context.Background(), msg); err != nil {
			t.Fatalf("HandleResponse %d returned error: %v", i, err)
		}
	}
	if calls != 1 || len(mock.Sent()) != 1 {
		t.Errorf("expected one reply for a redelivered message, got %d calls and %d sent", calls, len(mock.Sent()))
	}

	msg.MessageID = "3EB0C767D26B"
	if err := rh.HandleResponse(context.Background(), msg); err != nil {
		t.Fatalf("HandleResponse returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("a new message id should be answered, got %d calls", calls)
	}
}

func TestHandleResponse_WithoutMessageID(t *testing.T) {
	calls := 0
	rh := NewResponseHandler(NewWhatsAppService(whatsapp.NewMockClient()), countingReplier(&calls), "wa:", WithDedup(store.NewInMemoryStore()))
	msg := models.Response{From: "919876543210", Body: "menu"}
	rh.HandleResponse(context.Background(), msg)
	rh.HandleResponse(context.Background(), msg)
	if calls != 2 {
		t.Errorf("messages without ids are never de-duplicated, got %d calls", calls)
	}
}

func TestHandleResponse_DedupFailureStillReplies(t *testing.T) {
	calls := 0
	rh := NewResponseHandler(NewWhatsAppService(whatsapp.NewMockClient()), countingReplier(&calls), "wa:", WithDedup(failingDedup{}))
	msg := models.Response{MessageID: "SM1", From: "919876543210", Body: "menu"}
	if err := rh.HandleResponse(context.Background(), msg); err != nil {
		t.Fatalf("HandleResponse returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the message to be answered, got %d calls", calls)
	}
}

func TestRun_TwilioRetryAnsweredOnce(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	calls := 0
	rh := NewResponseHandler(svc, countingReplier(&calls), "twilio:", WithDedup(store.NewInMemoryStore()))

	for i := 0; i < 2; i++ {
		rr := postForm(svc.TwilioWebhookHandler, map[string][]string{
			"From": {"whatsapp:+919876543210"}, "Body": {"menu"}, "MessageSid": {"SM0123456789"},
		})
		if rr.Code != 200 {
			t.Fatalf("webhook returned %d", rr.Code)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rh.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(mock.Sent()) < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// give the retried delivery time to be drained and skipped
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 1 || len(mock.Sent()) != 1 {
		t.Errorf("expected the retried webhook to be answered once, got %d calls and %d sent", calls, len(mock.Sent()))
	}
}
