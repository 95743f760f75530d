package notify

import (
	"context"
	"fmt"

	"github.com/formloom/gateway/internal/config"
	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts alerts to a Slack channel.
type Slack struct {
	client    slackClient
	channelID string
}

// NewSlack creates a Slack notifier from config.
func NewSlack(cfg config.SlackConfig) *Slack {
	return &Slack{
		client:    slackapi.New(cfg.BotToken),
		channelID: cfg.ChannelID,
	}
}

// Notify posts one message.
func (s *Slack) Notify(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", s.channelID, err)
	}
	return nil
}
