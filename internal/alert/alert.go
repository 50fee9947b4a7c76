// Package alert notifies chat platforms when agent sessions end badly.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/agentops/internal/models"
)

// Sender is implemented by each platform integration.
type Sender interface {
	// Name identifies the platform in logs, e.g. "slack".
	Name() string

	// Send delivers one message. It must honor ctx cancellation.
	Send(ctx context.Context, msg Message) error
}

// Message is a platform-neutral notification.
type Message struct {
	Text     string  // plain fallback text
	Title    string  // headline, e.g. "Session s1 failed"
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color, e.g. "#e53935"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed with a message.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Dispatcher fans completed sessions out to every Sender. Delivery runs in
// the background and never reports back to the caller.
type Dispatcher struct {
	senders  []Sender
	statuses map[string]bool
	timeout  time.Duration
	wg       sync.WaitGroup
}

// DefaultTimeout bounds one delivery when none is configured.
const DefaultTimeout = 10 * time.Second

// NewDispatcher returns a Dispatcher that alerts on sessions whose final
// status is in statuses.
func NewDispatcher(senders []Sender, statuses []string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{
		senders:  senders,
		statuses: make(map[string]bool, len(statuses)),
		timeout:  timeout,
	}
	for _, s := range statuses {
		d.statuses[s] = true
	}
	return d
}

// SessionCompleted schedules an alert for sess if its status qualifies.
func (d *Dispatcher) SessionCompleted(sess *models.Session) {
	if d == nil || len(d.senders) == 0 || sess == nil || !d.statuses[sess.Status] {
		return
	}
	msg := FormatSession(sess)
	for _, s := range d.senders {
		d.wg.Add(1)
		go func(s Sender) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := s.Send(ctx, msg); err != nil {
				log.Warn().Err(err).Str("sender", s.Name()).Str("session_id", sess.ID).Msg("alert delivery failed")
				return
			}
			log.Debug().Str("sender", s.Name()).Str("session_id", sess.ID).Msg("alert delivered")
		}(s)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

// Color constants for message severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

func statusSeverity(status string) string {
	switch status {
	case models.SessionSuccess:
		return "success"
	case models.SessionFailed:
		return "error"
	case models.SessionTimeout:
		return "warning"
	default:
		return "info"
	}
}

// FormatSession builds the notification for a finished session.
func FormatSession(sess *models.Session) Message {
	severity := statusSeverity(sess.Status)
	title := fmt.Sprintf("Session %s %s", sess.ID, sess.Status)
	msg := Message{
		Text:     fmt.Sprintf("Agent %s: %s", sess.AgentID, title),
		Title:    title,
		Body:     fmt.Sprintf("Agent *%s* session ended with status *%s*.", sess.AgentID, sess.Status),
		Severity: severity,
		Color:    severityColor(severity),
		Fields: []Field{
			{Name: "Agent", Value: sess.AgentID, Short: true},
			{Name: "Status", Value: sess.Status, Short: true},
			{Name: "Trace", Value: sess.TraceID, Short: true},
			{Name: "Steps", Value: fmt.Sprintf("%d", sess.TotalSteps), Short: true},
			{Name: "Tokens", Value: fmt.Sprintf("%d in / %d out", sess.TotalTokensIn, sess.TotalTokensOut), Short: true},
		},
	}
	if sess.EndTime != nil {
		d := sess.EndTime.Sub(sess.StartTime).Round(time.Second)
		msg.Fields = append(msg.Fields, Field{Name: "Duration", Value: d.String(), Short: true})
	}
	if sess.ErrorCode != nil && *sess.ErrorCode != "" {
		msg.Fields = append(msg.Fields, Field{Name: "Error code", Value: *sess.ErrorCode, Short: true})
	}
	return msg
}
