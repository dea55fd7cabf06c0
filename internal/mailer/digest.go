// Package mailer builds rule digests and delivers them through a queue.
package mailer

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskpulse/internal/model"
)

// DigestTask is the part of a matched task a digest shows.
type DigestTask struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Board string `json:"board,omitempty"`
	DueOn string `json:"due_on"`
}

// Digest is one notification message for a rule owner.
type Digest struct {
	ID         string       `json:"id"`
	AccountID  uint         `json:"account_id"`
	RuleID     uint         `json:"rule_id"`
	UserID     uint         `json:"user_id"`
	Name       string       `json:"name"`
	To         string       `json:"to,omitempty"`
	TelegramID int64        `json:"telegram_id,omitempty"`
	Subject    string       `json:"subject"`
	Tasks      []DigestTask `json:"tasks"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewDigest builds the digest sent to rule's owner for the matched tasks.
func NewDigest(rule model.NotificationRule, tasks []model.Task, now time.Time) Digest {
	d := Digest{
		ID:         uuid.NewString(),
		AccountID:  rule.AccountID,
		RuleID:     rule.ID,
		UserID:     rule.UserID,
		Name:       rule.User.Name,
		To:         rule.User.Email,
		TelegramID: rule.User.TelegramID,
		Subject:    Subject(rule, len(tasks)),
		Tasks:      make([]DigestTask, 0, len(tasks)),
		CreatedAt:  now.UTC(),
	}
	for _, t := range tasks {
		item := DigestTask{ID: t.ID, Title: t.Title, Board: t.Board.Name}
		if t.DueOn != nil {
			item.DueOn = t.DueOn.String()
		}
		d.Tasks = append(d.Tasks, item)
	}
	return d
}

// Subject describes the count and due window, e.g. "2 cards due tomorrow - Standup".
func Subject(rule model.NotificationRule, count int) string {
	noun := "cards"
	if count == 1 {
		noun = "card"
	}
	switch {
	case rule.DueInDays == nil:
		return fmt.Sprintf("%d %s with due dates - %s", count, noun, rule.Name)
	case *rule.DueInDays == 0:
		return fmt.Sprintf("%d %s due today - %s", count, noun, rule.Name)
	case *rule.DueInDays == 1:
		return fmt.Sprintf("%d %s due tomorrow - %s", count, noun, rule.Name)
	default:
		return fmt.Sprintf("%d %s due in %d days - %s", count, noun, *rule.DueInDays, rule.Name)
	}
}

// Text renders the plain-text body.
func (d Digest) Text() string {
	var sb strings.Builder
	if d.Name != "" {
		sb.WriteString(fmt.Sprintf("Hi %s,\n\n", d.Name))
	}
	sb.WriteString(d.Subject)
	sb.WriteString("\n\n")
	for _, t := range d.Tasks {
		sb.WriteString("- ")
		sb.WriteString(t.Title)
		if t.Board != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", t.Board))
		}
		sb.WriteString(fmt.Sprintf(", due %s\n", t.DueOn))
	}
	return sb.String()
}

// HTML renders the body with Telegram-compatible markup.
func (d Digest) HTML() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>%s</b>\n\n", html.EscapeString(d.Subject)))
	for _, t := range d.Tasks {
		sb.WriteString(fmt.Sprintf("⏳ %s", html.EscapeString(strings.TrimSpace(t.Title))))
		if name := strings.TrimSpace(t.Board); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s\n", t.DueOn))
	}
	return strings.TrimSpace(sb.String())
}
