package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/formloom/gateway/internal/config"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts alerts to a Discord channel over the REST API. No Gateway
// WebSocket is opened; send-only traffic does not need one.
type Discord struct {
	sess      discordSession
	channelID string
}

// NewDiscord creates a Discord notifier from config.
func NewDiscord(cfg config.DiscordConfig) *Discord {
	sess, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		// discordgo.New only fails on malformed parameters; fall back to a
		// session that will surface the error on first send.
		sess = &discordgo.Session{Token: "Bot " + cfg.BotToken}
	}
	return &Discord{sess: sess, channelID: cfg.ChannelID}
}

// Notify posts one message.
func (d *Discord) Notify(_ context.Context, text string) error {
	if _, err := d.sess.ChannelMessageSend(d.channelID, text); err != nil {
		return fmt.Errorf("discord: send to %s: %w", d.channelID, err)
	}
	return nil
}
