package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"quickcart/internal/model"
	"quickcart/internal/repository"
	"quickcart/internal/service/order"
	"quickcart/pkg/log"
	"quickcart/pkg/utils"
)

// WebhookResult reports how an incoming webhook was handled.
type WebhookResult struct {
	EventID   string
	Duplicate bool
}

// webhookBody is the gateway's notification payload.
type webhookBody struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	OrderNo   string `json:"order_no"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

// Webhook event types the gateways send.
const (
	webhookPaymentCaptured = "payment.captured"
	webhookPaymentFailed   = "payment.failed"
)

// Service verifies, deduplicates and routes payment-gateway webhooks.
// Dedup is a unique insert on (provider, event_id); a bloom filter in
// front of it skips the table lookup for events we have definitely
// never seen.
type Service interface {
	HandleWebhook(ctx context.Context, provider, signature string, body []byte) (*WebhookResult, error)
}

type service struct {
	webhooks repository.WebhookRepository
	orders   order.Service
	secrets  map[string]string

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

func NewService(webhooks repository.WebhookRepository, orders order.Service, secrets map[string]string) Service {
	return &service{
		webhooks: webhooks,
		orders:   orders,
		secrets:  secrets,
		seen:     bloom.NewWithEstimates(100_000, 0.01),
	}
}

func (s *service) HandleWebhook(ctx context.Context, provider, signature string, body []byte) (*WebhookResult, error) {
	secret, ok := s.secrets[provider]
	if !ok {
		return nil, utils.NewError(utils.CodeBadRequest, "unknown payment provider")
	}
	if !verifySignature(secret, signature, body) {
		return nil, utils.ErrUnauthorized
	}

	var payload webhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, utils.NewError(utils.CodeInvalidParam, "malformed webhook payload")
	}
	if payload.EventID == "" {
		return nil, utils.NewError(utils.CodeInvalidParam, "webhook payload missing event_id")
	}

	logger := log.WithComponent("payment").WithFields(map[string]any{
		"provider": provider,
		"event_id": payload.EventID,
		"type":     payload.Type,
	})

	dedupKey := provider + ":" + payload.EventID
	if s.maybeSeen(dedupKey) {
		// The filter can false-positive; the unique index below is the
		// authoritative check. Only a definite "never seen" skips it.
		exists, err := s.webhooks.Exists(ctx, provider, payload.EventID)
		if err != nil {
			return nil, err
		}
		if exists {
			logger.Info("duplicate webhook ignored")
			return &WebhookResult{EventID: payload.EventID, Duplicate: true}, nil
		}
	}

	record := &model.WebhookEvent{
		Provider:  provider,
		EventID:   payload.EventID,
		EventType: payload.Type,
		Payload:   string(body),
	}
	if err := s.webhooks.Insert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			logger.Info("duplicate webhook ignored")
			return &WebhookResult{EventID: payload.EventID, Duplicate: true}, nil
		}
		return nil, err
	}
	s.markSeen(dedupKey)

	switch payload.Type {
	case webhookPaymentCaptured:
		if err := s.orders.HandlePaymentSuccess(ctx, payload.OrderNo, payload.PaymentID); err != nil {
			if errors.Is(err, utils.ErrOutOfStock) {
				// The order was cancelled because stock ran out before the
				// payment landed; a refund is owed but the webhook itself
				// is fully handled.
				logger.Warn("payment captured for cancelled order, refund required")
				return &WebhookResult{EventID: payload.EventID}, nil
			}
			return nil, err
		}
	case webhookPaymentFailed:
		if err := s.orders.HandlePaymentFailure(ctx, payload.OrderNo, payload.Reason); err != nil {
			return nil, err
		}
	default:
		// Unknown event kinds are recorded and acknowledged so the
		// gateway stops retrying them.
		logger.Warn("unhandled webhook type")
	}

	return &WebhookResult{EventID: payload.EventID}, nil
}

func (s *service) maybeSeen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.TestString(key)
}

func (s *service) markSeen(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen.AddString(key)
}

// verifySignature checks the hex-encoded HMAC-SHA256 of the raw body.
func verifySignature(secret, signature string, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
