package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"
	"ledgerpay/pkg/payment"
)

// Pusher delivers a payload to a user's live connections, if any.
type Pusher interface {
	BroadcastToUser(userID uint, payload interface{})
}

// mobilePusher is the FCM side of delivery.
type mobilePusher interface {
	SendToUser(ctx context.Context, fcmToken, notifType, title, body string, data map[string]interface{}) error
}

type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	mobile   mobilePusher
	pusher   Pusher
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, pusher Pusher) *NotificationService {
	s := &NotificationService{repo: repo, userRepo: userRepo, pusher: pusher}
	if fcm != nil {
		s.mobile = fcm
	}
	return s
}

func (s *NotificationService) Name() string { return "notification" }

// Notify persists the message, then pushes it over websocket and FCM. Only
// the persist step can fail the call.
func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, body string, paymentID uint) error {
	n := &models.Notification{
		UserID: userID,
		Type:   notifType,
		Body:   body,
	}
	if paymentID != 0 {
		n.PaymentID = &paymentID
	}
	if err := s.repo.Create(n); err != nil {
		return fmt.Errorf("save notification for user %d: %w", userID, err)
	}
	if s.pusher != nil {
		s.pusher.BroadcastToUser(userID, map[string]interface{}{
			"type":         "notification",
			"notification": n,
		})
	}
	s.sendPush(ctx, userID, notifType, body, paymentID)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, notifType, body string, paymentID uint) {
	if s.mobile == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	if err := s.mobile.SendToUser(ctx, u.FCMToken, notifType, "Payments", body, map[string]interface{}{"payment_id": paymentID}); err != nil {
		slog.Warn("fcm push failed", "component", "notification", "user_id", userID, "type", notifType, "error", err)
	}
}

// HandleSettled tells the payer, and the referrer when a bonus was granted.
func (s *NotificationService) HandleSettled(ctx context.Context, ev SettledEvent) error {
	var errs []error
	switch ev.Kind {
	case payment.KindTopup:
		msg := "✅ Balance topped up: +$" + payment.FormatMinorUnits(ev.AmountCents)
		errs = append(errs, s.Notify(ctx, ev.UserID, domain.NotificationTypeTopup, msg, ev.PaymentID))
	case payment.KindOrderPurchase:
		errs = append(errs, s.Notify(ctx, ev.UserID, domain.NotificationTypeOrderPaid, "✅ Your order has been paid successfully!", ev.PaymentID))
	}
	if ev.Bonus != nil {
		msg := "🎉 Referral Bonus from your invited user! +$" + payment.FormatMinorUnits(ev.Bonus.AmountCents)
		errs = append(errs, s.Notify(ctx, ev.Bonus.ReferrerID, domain.NotificationTypeReferralBonus, msg, ev.PaymentID))
	}
	return errors.Join(errs...)
}

func (s *NotificationService) List(userID uint, limit, offset int) ([]models.Notification, int64, error) {
	list, err := s.repo.ListByUserID(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	return s.repo.MarkRead(id, userID)
}
