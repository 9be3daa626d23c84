package slack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// Client posts messages through an incoming webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	msg := &slack.WebhookMessage{
		Channel: channel,
		Text:    message,
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, c.webhookURL, c.httpClient, msg); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// BotClient posts messages with a bot token through the Web API.
type BotClient struct {
	api *slack.Client
}

func NewBotClient(token string, opts ...slack.Option) *BotClient {
	return &BotClient{api: slack.New(token, opts...)}
}

func (c *BotClient) PostMessage(ctx context.Context, channel string, message string) error {
	if _, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false)); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}
