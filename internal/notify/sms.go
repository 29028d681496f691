package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/carshare-deposits/internal/model"
	"github.com/iliyamo/carshare-deposits/internal/queue"
)

// InAppStore persists in-app notifications.
type InAppStore interface {
	CreateIfAbsent(ctx context.Context, n model.InAppNotification) (bool, error)
}

// notificationNamespace seeds the deterministic notification ids.
var notificationNamespace = uuid.MustParse("6f1c1b1e-5d0a-4f5e-9a58-3c2d7b0e4a11")

// SMSSender writes the in-app notification and texts the guest through an
// SMS provider webhook.  Both steps are safe to repeat: the notification id
// is derived from the booking and the webhook receives the same dedupe key
// on every attempt.
type SMSSender struct {
	store      InAppStore
	webhookURL string
	client     *http.Client
	nowFn      func() time.Time
}

// NewSMSSender returns a sender.  An empty webhookURL disables texting;
// in-app notifications are still written.
func NewSMSSender(store InAppStore, webhookURL string, timeout time.Duration) *SMSSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSSender{
		store:      store,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		nowFn:      time.Now,
	}
}

type smsPayload struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	DedupeID string `json:"dedupe_id"`
}

// NotificationID is the in-app notification id used for a booking's release.
func NotificationID(bookingID string) string {
	return uuid.NewSHA1(notificationNamespace, []byte("deposit-released:"+bookingID)).String()
}

// Send records the in-app notification and sends the text message.
func (s *SMSSender) Send(ctx context.Context, ev queue.DepositReleasedEvent) error {
	if s.store != nil && ev.GuestEmail != "" {
		n := model.InAppNotification{
			ID:        NotificationID(ev.BookingID),
			Email:     ev.GuestEmail,
			Type:      NotificationTypeDepositReleased,
			Title:     "Security deposit released",
			Message:   smsText(ev),
			ActionURL: "/bookings/" + ev.BookingCode,
			CreatedAt: s.nowFn().UTC(),
		}
		if ev.GuestID != "" {
			id := ev.GuestID
			n.UserID = &id
		}
		if _, err := s.store.CreateIfAbsent(ctx, n); err != nil {
			return fmt.Errorf("in-app notification for %s: %w", ev.BookingCode, err)
		}
	}
	if s.webhookURL == "" || ev.GuestPhone == "" {
		return nil
	}

	body, err := json.Marshal(smsPayload{To: ev.GuestPhone, Message: smsText(ev), DedupeID: NotificationID(ev.BookingID)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
