// README: Firebase Cloud Messaging push gateway; device tokens live in RTDB.
package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

const deviceTokensNode = "device_tokens"

// Messenger is the subset of messaging.Client the push gateway needs.
type Messenger interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// TokenLookup resolves a user's registered device token. Empty means none.
type TokenLookup interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

type PushGateway struct {
	msg    Messenger
	tokens TokenLookup
	log    *zap.Logger
}

func NewPushGateway(msg Messenger, tokens TokenLookup, log *zap.Logger) *PushGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &PushGateway{msg: msg, tokens: tokens, log: log}
}

// NewFirebasePushGateway builds the gateway from the app's messaging and RTDB clients.
func NewFirebasePushGateway(ctx context.Context, app *firebase.App, log *zap.Logger) (*PushGateway, error) {
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase messaging client: %w", err)
	}
	dbClient, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase RTDB client: %w", err)
	}
	return NewPushGateway(msgClient, &rtdbTokens{db: dbClient}, log), nil
}

func (g *PushGateway) Send(ctx context.Context, in Intent) error {
	token, err := g.tokens.DeviceToken(ctx, string(in.UserID))
	if err != nil {
		return fmt.Errorf("device token for %s: %w", in.UserID, err)
	}
	if token == "" {
		return ErrNoDeviceToken
	}

	data := make(map[string]string, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		data[k] = v
	}
	data["type"] = string(in.Category)

	id, err := g.msg.Send(ctx, &messaging.Message{
		Token: token,
		Data:  data,
		Notification: &messaging.Notification{
			Title: in.Title,
			Body:  in.Message,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return fmt.Errorf("sending FCM to %s: %w", in.UserID, err)
	}
	g.log.Debug("fcm sent", zap.String("user_id", in.UserID.String()), zap.String("message_id", id))
	return nil
}

type rtdbTokens struct {
	db *db.Client
}

func (t *rtdbTokens) DeviceToken(ctx context.Context, userID string) (string, error) {
	var token string
	if err := t.db.NewRef(deviceTokensNode).Child(userID).Get(ctx, &token); err != nil {
		return "", err
	}
	return token, nil
}
