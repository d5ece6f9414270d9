package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/store"
)

// DefaultErrorMessage is sent when a reply could not be produced.
const DefaultErrorMessage = "⚠️ We encountered an issue processing your message. Please try again or send 'menu'."

// Replier produces the reply to one inbound message for a session.
type Replier interface {
	Reply(ctx context.Context, sessionID, text string) (string, error)
}

// HandlerOpts holds optional ResponseHandler settings.
type HandlerOpts struct {
	Dedup store.DedupRepo
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*HandlerOpts)

// WithDedup answers each transport message id at most once.
func WithDedup(repo store.DedupRepo) HandlerOption {
	return func(o *HandlerOpts) {
		o.Dedup = repo
	}
}

// ResponseHandler answers every inbound message on a Service with the
// replier's output. Sessions are keyed by the sender's canonical number.
type ResponseHandler struct {
	msgService    Service
	replier       Replier
	sessionPrefix string
	dedup         store.DedupRepo
}

// NewResponseHandler creates a ResponseHandler. prefix namespaces session ids per transport.
func NewResponseHandler(msgService Service, replier Replier, prefix string, opts ...HandlerOption) *ResponseHandler {
	var cfg HandlerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ResponseHandler{msgService: msgService, replier: replier, sessionPrefix: prefix, dedup: cfg.Dedup}
}

// SessionID returns the session id used for a canonical sender.
func (rh *ResponseHandler) SessionID(canonicalFrom string) string {
	return rh.sessionPrefix + canonicalFrom
}

// ProcessResponse replies to one inbound message.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, from, body string) error {
	canonicalFrom, err := rh.msgService.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("ResponseHandler.ProcessResponse: invalid sender", "error", err, "from", from)
		return fmt.Errorf("invalid sender: %w", err)
	}

	reply, err := rh.replier.Reply(ctx, rh.SessionID(canonicalFrom), body)
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: reply failed", "error", err, "from", canonicalFrom)
		if sendErr := rh.msgService.SendMessage(ctx, canonicalFrom, DefaultErrorMessage); sendErr != nil {
			slog.Error("ResponseHandler.ProcessResponse: failed to send error message", "error", sendErr, "from", canonicalFrom)
		}
		return fmt.Errorf("reply failed: %w", err)
	}

	if err := rh.msgService.SendMessage(ctx, canonicalFrom, reply); err != nil {
		slog.Error("ResponseHandler.ProcessResponse: failed to send reply", "error", err, "from", canonicalFrom)
		return fmt.Errorf("send reply: %w", err)
	}
	slog.Debug("ResponseHandler.ProcessResponse: replied", "from", canonicalFrom, "reply_length", len(reply))
	return nil
}

// HandleResponse replies to response unless its message id was already seen.
// A failed dedup lookup is logged and the message is answered anyway.
func (rh *ResponseHandler) HandleResponse(ctx context.Context, response models.Response) error {
	if rh.dedup == nil || response.MessageID == "" {
		return rh.ProcessResponse(ctx, response.From, response.Body)
	}

	fresh, err := rh.dedup.RecordInbound(ctx, response.MessageID, response.From)
	if err != nil {
		slog.Warn("ResponseHandler.HandleResponse: dedup check failed", "error", err, "message_id", response.MessageID)
	} else if !fresh {
		slog.Info("ResponseHandler.HandleResponse: duplicate message skipped", "message_id", response.MessageID, "from", response.From)
		return nil
	}

	if err := rh.ProcessResponse(ctx, response.From, response.Body); err != nil {
		return err
	}
	if err := rh.dedup.MarkProcessed(ctx, response.MessageID); err != nil {
		slog.Warn("ResponseHandler.HandleResponse: mark processed failed", "error", err, "message_id", response.MessageID)
	}
	return nil
}

// Run processes inbound messages until ctx is cancelled or the service closes
// its channels. Receipts are drained and logged.
func (rh *ResponseHandler) Run(ctx context.Context) error {
	slog.Info("ResponseHandler.Run: processing messages")
	defer slog.Info("ResponseHandler.Run: stopped")

	responses := rh.msgService.Responses()
	receipts := rh.msgService.Receipts()
	for responses != nil || receipts != nil {
		select {
		case <-ctx.Done():
			return nil
		case response, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			if err := rh.HandleResponse(ctx, response); err != nil {
				slog.Warn("ResponseHandler.Run: message not handled", "error", err, "from", response.From)
			}
		case receipt, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("ResponseHandler.Run: receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
	return nil
}
