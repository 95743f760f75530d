// Package notify delivers operational alerts (quota exhaustion, key
// deactivation) to Slack and Discord channels. Delivery is best-effort;
// alerting never blocks or fails a request path.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/formloom/gateway/internal/config"
)

// Notifier sends one alert message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Noop discards alerts. Used when no channel is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// Multi fans an alert out to several channels, collecting failures without
// short-circuiting.
type Multi struct {
	targets []Notifier
}

// NewMulti builds a Multi from the configured channels. With nothing
// configured it degrades to a Noop.
func NewMulti(cfg config.NotifyConfig) Notifier {
	var targets []Notifier
	if cfg.Slack.BotToken != "" && cfg.Slack.ChannelID != "" {
		targets = append(targets, NewSlack(cfg.Slack))
	}
	if cfg.Discord.BotToken != "" && cfg.Discord.ChannelID != "" {
		targets = append(targets, NewDiscord(cfg.Discord))
	}
	if len(targets) == 0 {
		return Noop{}
	}
	return &Multi{targets: targets}
}

// Notify delivers to every configured channel.
func (m *Multi) Notify(ctx context.Context, text string) error {
	var errs []string
	for _, t := range m.targets {
		if err := t.Notify(ctx, text); err != nil {
			log.Printf("notify: %v", err)
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}
