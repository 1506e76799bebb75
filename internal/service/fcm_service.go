package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMService sends payment push notifications via Firebase Cloud Messaging.
// A nil *FCMService is valid and sends nothing.
type FCMService struct {
	client *messaging.Client
}

// NewFCMService returns nil when Firebase is not configured or fails to start.
func NewFCMService(ctx context.Context, credentialsFile string) *FCMService {
	if credentialsFile == "" {
		return nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		slog.Error("firebase init failed", "component", "fcm", "error", err)
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		slog.Error("firebase messaging client failed", "component", "fcm", "error", err)
		return nil
	}
	return &FCMService{client: client}
}

func (s *FCMService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if s == nil || token == "" {
		return nil
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		slog.Warn("fcm send failed", "component", "fcm", "error", err)
		return err
	}
	return nil
}

// SendToUser stringifies data values, which FCM requires, and sends.
func (s *FCMService) SendToUser(ctx context.Context, fcmToken, notifType, title, body string, data map[string]interface{}) error {
	if s == nil || fcmToken == "" {
		return nil
	}
	return s.Send(ctx, fcmToken, title, body, fcmData(notifType, data))
}

func fcmData(notifType string, data map[string]interface{}) map[string]string {
	out := map[string]string{"type": notifType}
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case uint, int, int64:
			out[k] = fmt.Sprintf("%d", val)
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out
}
