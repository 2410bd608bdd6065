package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quickcart/internal/model"
	"quickcart/internal/repository"
	"quickcart/internal/utils"
	"quickcart/pkg/log"
	pkgutils "quickcart/pkg/utils"
)

// TokenPair is the access/refresh token pair handed to clients.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	Name     *string `json:"name"`
}

// Service implements authentication with rotating refresh tokens.
// Every refresh token belongs to a family; presenting an already
// rotated token is treated as theft and revokes the whole family.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error)
	// Refresh rotates the presented refresh token. Returns
	// ErrTokenReplay after revoking the family when the token was
	// already rotated.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Logout revokes one token when given, or every active token of the
	// user otherwise.
	Logout(ctx context.Context, userID uint64, refreshToken string) error
	ValidateAccess(ctx context.Context, accessToken string) (*utils.Claims, error)
	// CleanupExpired removes refresh tokens long past their expiry.
	CleanupExpired(ctx context.Context) (int64, error)
}

type service struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	jwt    *utils.JWTManager
}

func NewService(users repository.UserRepository, tokens repository.TokenRepository, jwt *utils.JWTManager) Service {
	return &service{users: users, tokens: tokens, jwt: jwt}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        input.Email,
		PasswordHash: string(hash),
		Name:         input.Name,
		Role:         "customer",
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, pkgutils.NewError(pkgutils.CodeConflict, "email already registered")
		}
		return nil, err
	}
	log.WithComponent("auth").WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, pkgutils.ErrUnauthorized
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, pkgutils.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, pkgutils.ErrUnauthorized
	}

	// A fresh family per login; every rotation of this session inherits it.
	pair, err := s.issuePair(ctx, user, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.WithComponent("auth").WithError(err).Warn("could not stamp last login")
	}
	return user, pair, nil
}

func (s *service) issuePair(ctx context.Context, user *model.User, family string) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	record := &model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		Family:    family,
		ExpiresAt: time.Now().Add(s.jwt.RefreshExpire()),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateToken(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil, pkgutils.ErrInvalidToken
	}

	record, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, pkgutils.ErrInvalidToken
		}
		return nil, err
	}
	if record.IsExpired() {
		return nil, pkgutils.ErrInvalidToken
	}

	if record.IsRevoked() {
		// This token was already exchanged once. Someone is replaying it,
		// so the entire lineage is burned.
		revoked, revokeErr := s.tokens.RevokeFamily(ctx, record.Family)
		if revokeErr != nil {
			return nil, revokeErr
		}
		log.WithComponent("auth").WithFields(map[string]any{
			"user_id": record.UserID,
			"family":  record.Family,
			"revoked": revoked,
		}).Warn("refresh token replay detected, family revoked")
		return nil, pkgutils.ErrTokenReplay
	}

	if err := s.tokens.Revoke(ctx, record.ID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, pkgutils.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, pkgutils.ErrUnauthorized
	}
	return s.issuePair(ctx, user, record.Family)
}

func (s *service) Logout(ctx context.Context, userID uint64, refreshToken string) error {
	if refreshToken != "" {
		return s.tokens.RevokeUserToken(ctx, userID, refreshToken)
	}
	revoked, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	log.WithComponent("auth").WithFields(map[string]any{
		"user_id": userID,
		"revoked": revoked,
	}).Info("user logged out everywhere")
	return nil
}

func (s *service) ValidateAccess(ctx context.Context, accessToken string) (*utils.Claims, error) {
	claims, err := s.jwt.ValidateToken(accessToken, utils.TokenTypeAccess)
	if err != nil {
		return nil, pkgutils.ErrUnauthorized
	}
	return claims, nil
}

func (s *service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpiredBefore(ctx, time.Now())
}
