package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"quickcart/internal/cache"
	"quickcart/internal/model"
	"quickcart/internal/repository"
	"quickcart/pkg/log"
	"quickcart/pkg/utils"
)

// CachedResponse is a previously recorded response for an idempotency key.
type CachedResponse struct {
	Status int
	Body   string
}

// Service implements idempotency-key handling for mutating endpoints.
// A key records the SHA-256 fingerprint of the request payload; replays
// with the same fingerprint get the stored response, replays with a
// different fingerprint are rejected, and concurrent first attempts are
// rejected while the original is still in flight.
type Service interface {
	// Check returns the stored response for key if the request already
	// completed, nil if the caller should proceed, or an error when the
	// key is in use with a different payload or still in flight.
	Check(ctx context.Context, key, requestHash string) (*CachedResponse, error)
	// Reserve claims key for the current request before the handler runs.
	Reserve(ctx context.Context, key, requestHash string) error
	// Store records the handler's response against key.
	Store(ctx context.Context, key string, status int, body string) error
	// Remove drops a reservation whose handler failed, so the client can retry.
	Remove(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type service struct {
	repo      repository.IdempotencyRepository
	responses *cache.ResponseCache
	ttl       time.Duration
}

func NewService(repo repository.IdempotencyRepository, responses *cache.ResponseCache, ttl time.Duration) Service {
	return &service{repo: repo, responses: responses, ttl: ttl}
}

// HashPayload fingerprints a request body for conflict detection.
func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *service) Check(ctx context.Context, key, requestHash string) (*CachedResponse, error) {
	if cached, hash, ok := s.responses.Get(key); ok {
		if hash != requestHash {
			return nil, utils.ErrIdempotencyConflict
		}
		return &CachedResponse{Status: cached.Status, Body: cached.Body}, nil
	}

	record, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if record.IsExpired() {
		if err := s.repo.DeleteByID(ctx, record.ID); err != nil {
			log.WithComponent("idempotency").WithError(err).Warn("failed to remove expired key")
		}
		return nil, nil
	}

	if record.RequestHash != requestHash {
		return nil, utils.ErrIdempotencyConflict
	}

	if !record.HasResponse() {
		return nil, utils.ErrIdempotencyInFlight
	}

	resp := &CachedResponse{Status: *record.ResponseStatus, Body: *record.ResponseBody}
	s.responses.Set(key, record.RequestHash, resp.Status, resp.Body)
	return resp, nil
}

func (s *service) Reserve(ctx context.Context, key, requestHash string) error {
	record := &model.IdempotencyKey{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   time.Now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Raced with another request holding the same key. Surface a
			// payload mismatch if there is one, otherwise treat the twin
			// as in flight and let the client retry.
			if _, checkErr := s.Check(ctx, key, requestHash); checkErr != nil {
				return checkErr
			}
			return utils.ErrIdempotencyInFlight
		}
		return err
	}
	return nil
}

func (s *service) Store(ctx context.Context, key string, status int, body string) error {
	if err := s.repo.StoreResponse(ctx, key, status, body); err != nil {
		return err
	}
	record, err := s.repo.GetByKey(ctx, key)
	if err == nil {
		s.responses.Set(key, record.RequestHash, status, body)
	}
	return nil
}

func (s *service) Remove(ctx context.Context, key string) error {
	s.responses.Delete(key)
	return s.repo.DeleteByKey(ctx, key)
}

func (s *service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.WithComponent("idempotency").WithField("removed", n).Info("expired idempotency keys purged")
	}
	return n, nil
}
