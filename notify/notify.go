package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gregdel/pushover"
)

const defaultCooldown = 15 * time.Minute

type Sender interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

// Pushover lets the operator know when the gallery can't get a token, which
// means every visitor is looking at an empty page. Alerts are rate limited so
// a Twitch outage sends one notification rather than one per visitor.
type Pushover struct {
	sender    Sender
	recipient *pushover.Recipient
	cooldown  time.Duration
	now       func() time.Time

	m        sync.Mutex
	lastSent time.Time
}

func NewPushover(token, recipient string) *Pushover {
	return &Pushover{
		sender:    pushover.New(token),
		recipient: pushover.NewRecipient(recipient),
		cooldown:  defaultCooldown,
		now:       time.Now,
	}
}

func (p *Pushover) TokenIssueFailed(err error) {
	p.m.Lock()
	now := p.now()
	if !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.cooldown {
		p.m.Unlock()
		return
	}
	p.lastSent = now
	p.m.Unlock()

	message := &pushover.Message{
		Message:    err.Error(),
		Title:      "Explorer could not get a Twitch token",
		Priority:   pushover.PriorityHigh,
		Timestamp:  now.Unix(),
		DeviceName: "Explorer",
	}
	if _, err := p.sender.SendMessage(message, p.recipient); err != nil {
		slog.Error("Failed to send pushover notification", slog.String("error", err.Error()))
	}
}
