// Package chat implements the text command protocol used over WhatsApp.
//
// Each inbound message is parsed into a Command, applied to the sender's
// session through the assistant, and answered with one plain-text reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/taxrules"
)

// HelpText lists the supported commands.
const HelpText = `🧾 TaxPro commands
menu - main menu
1 / 2 / 3 - pick a service from the menu
<number> - choose an option on an ITR step
` + optimizeExample + `
name / email / date / time <value> - fill the consultation form
submit - book the consultation
glossary [term] - explain 80C, HRA, TDS or 87A`

// MsgUnknownCommand is sent for messages that match no command.
const MsgUnknownCommand = "Sorry, I didn't understand that. Send 'help' for the list of commands."

// Bot answers chat messages for one assistant.
type Bot struct {
	assistant *assistant.Assistant
}

// NewBot creates a Bot.
func NewBot(a *assistant.Assistant) *Bot {
	return &Bot{assistant: a}
}

// Reply applies text to the session sessionID and returns the message to send back.
// The session is created on first contact.
func (b *Bot) Reply(ctx context.Context, sessionID, text string) (string, error) {
	view, err := b.assistant.Open(ctx, sessionID)
	if err != nil {
		return "", err
	}

	cmd, parseErr := Parse(text)
	if parseErr != nil {
		slog.Debug("Bot.Reply: command rejected", "sessionID", sessionID, "error", parseErr)
		return "⚠️ " + parseErr.Error(), nil
	}

	switch cmd.Kind {
	case KindHelp:
		return HelpText + "\n\n" + Format(view), nil
	case KindMenu:
		view, err = b.assistant.MainMenu(ctx, sessionID)
	case KindNumber:
		view, err = b.number(ctx, view, cmd.Number)
	case KindOptimize:
		view, err = b.assistant.Optimize(ctx, sessionID, cmd.Profile)
	case KindContact:
		view, err = b.assistant.SetContactField(ctx, sessionID, cmd.Field, cmd.Value)
	case KindSubmit:
		view, err = b.assistant.SubmitConsultation(ctx, sessionID, "")
	case KindGlossary:
		return glossaryReply(cmd.Term), nil
	default:
		return MsgUnknownCommand, nil
	}
	if err != nil {
		return "", err
	}
	return Format(view), nil
}

// number picks a menu entry on the main menu and a step option inside a workflow.
func (b *Bot) number(ctx context.Context, view assistant.View, n int) (assistant.View, error) {
	if view.Service == models.ServiceITRFiling && view.Step != nil {
		return b.assistant.ChooseOption(ctx, view.SessionID, n-1)
	}
	svc, ok := assistant.ServiceForNumber(n)
	if !ok {
		view.Error, view.Err = assistant.MsgInvalidService, models.ErrInvalidService
		return view, nil
	}
	return b.assistant.SelectService(ctx, view.SessionID, svc)
}

// Format renders a view as a chat message.
func Format(v assistant.View) string {
	var sb strings.Builder
	if v.Error != "" {
		sb.WriteString("⚠️ " + v.Error + "\n")
		for _, f := range v.FieldErrors {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Field, f.Message)
		}
		sb.WriteString("\n")
	}
	if v.Notice != "" {
		sb.WriteString("✅ " + v.Notice + "\n\n")
	}

	switch v.Service {
	case models.ServiceITRFiling:
		formatStep(&sb, v)
	case models.ServiceOptimization:
		formatOptimization(&sb, v)
	case models.ServiceExpert:
		formatContact(&sb, v)
	default:
		sb.WriteString("🏛️ " + v.Title + "\n")
		for _, item := range v.Menu {
			fmt.Fprintf(&sb, "\n%d. %s", item.Number, item.Label)
		}
		sb.WriteString("\n\nReply with a number, or 'help' for all commands.")
	}
	return strings.TrimSpace(sb.String())
}

func formatStep(sb *strings.Builder, v assistant.View) {
	if v.Step == nil {
		sb.WriteString("Send 'menu' to start over.")
		return
	}
	sb.WriteString(v.Step.Text())
	if v.Video != nil {
		sb.WriteString("\n\n🎥 " + v.Video.WatchURL)
	} else if v.VideoError != "" {
		sb.WriteString("\n\n🎥 " + v.VideoError)
	}
	if len(v.Step.Options) > 0 {
		sb.WriteString("\n\nReply with an option number, or 'menu' to go back.")
	} else {
		sb.WriteString("\n\nYou've reached the end of this guide. Send 'menu' to go back.")
	}
}

func formatOptimization(sb *strings.Builder, v assistant.View) {
	sb.WriteString("📈 " + v.Title + "\n")
	if v.Optimization == nil {
		sb.WriteString("\nSend your details like this:\n" + optimizeExample)
		return
	}
	for _, s := range v.Optimization.Suggestions {
		fmt.Fprintf(sb, "\n• %s: %s (Limit: %s)", s.Rule, s.Text, s.Limit)
	}
	if len(v.Optimization.Breakdown) > 0 {
		sb.WriteString("\n\n📊 Current breakdown:")
		for _, slice := range v.Optimization.Breakdown {
			fmt.Fprintf(sb, "\n- %s: %s", slice.Category, taxrules.Rupees(slice.Amount))
		}
	}
}

func formatContact(sb *strings.Builder, v assistant.View) {
	sb.WriteString("👨‍💼 " + v.Title + "\n")
	if v.Appointment != nil {
		fmt.Fprintf(sb, "\nBooked for %s (ref %s).", v.Appointment.ScheduledAt.Format("2006-01-02 15:04"), v.Appointment.ID)
		return
	}
	c := v.Contact
	fmt.Fprintf(sb, "\nName: %s\nEmail: %s\nDate: %s\nTime: %s", orDash(c.Name), orDash(c.Email), orDash(c.Date), orDash(c.Time))
	sb.WriteString("\n\nSend 'name …', 'email …', 'date YYYY-MM-DD', 'time HH:MM', then 'submit'.")
}

func glossaryReply(term string) string {
	if strings.TrimSpace(term) == "" {
		var sb strings.Builder
		sb.WriteString("📖 Tax terms:")
		for _, e := range taxrules.Glossary() {
			fmt.Fprintf(&sb, "\n• %s: %s", e.Term, e.Description)
		}
		return sb.String()
	}
	e, ok := taxrules.LookupTerm(term)
	if !ok {
		return fmt.Sprintf("I don't have an entry for %q. Send 'glossary' to list the terms.", strings.TrimSpace(term))
	}
	return fmt.Sprintf("📖 %s\n%s\nExample: %s\nLimit: %s", e.Term, e.Description, e.Example, e.Limit)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
