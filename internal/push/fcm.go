package push

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// MulticastResult summarizes one send to a member's device tokens.
type MulticastResult struct {
	SuccessCount int
	// Failed lists every token the send did not reach.
	Failed []string
	// Dead is the subset of Failed that FCM no longer recognizes.
	Dead []string
}

// TokenSender delivers a payload to a set of device tokens.
type TokenSender interface {
	SendMulticast(ctx context.Context, tokens []string, payload Payload) (MulticastResult, error)
}

// FCMClient sends notifications through Firebase Cloud Messaging.
type FCMClient struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMClient builds a messaging client from an initialized Firebase app.
func NewFCMClient(ctx context.Context, app *firebase.App, logger *slog.Logger) (*FCMClient, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &FCMClient{client: client, logger: logger.With("component", "fcm")}, nil
}

func (c *FCMClient) SendMulticast(ctx context.Context, tokens []string, payload Payload) (MulticastResult, error) {
	if len(tokens) == 0 {
		return MulticastResult{}, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.data(),
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: payload.Title,
				Body:  payload.Body,
				Icon:  "/icon-192.png",
				Tag:   payload.Tag,
			},
		},
	}

	resp, err := c.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return MulticastResult{}, fmt.Errorf("send multicast: %w", err)
	}

	result := MulticastResult{SuccessCount: resp.SuccessCount}
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		result.Failed = append(result.Failed, tokens[i])
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			result.Dead = append(result.Dead, tokens[i])
		}
		c.logger.Warn("fcm delivery failed", "token", truncateToken(tokens[i]), "error", r.Error)
	}
	return result, nil
}

func truncateToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
