package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vetrai/auth-service/internal/models"
	"gorm.io/gorm"
)

// TokenStore persists one-way hashes of access and refresh tokens. It never
// sees a plaintext token. Not-found, expired and revoked all surface as
// ErrTokenInvalid; driver and context failures surface as ErrStoreUnavailable
// so callers can tell a definitive negative from an outage.
type TokenStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewTokenStore(db *gorm.DB, timeout time.Duration) *TokenStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TokenStore{db: db, timeout: timeout}
}

func (s *TokenStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// storeErr classifies a gorm error for external consumption.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenInvalid
	}
	return errors.Join(ErrStoreUnavailable, err)
}

// isUniqueViolation detects a token_hash uniqueness conflict across the
// supported drivers. A collision on insert means generation went wrong; the
// caller regenerates rather than proceeding with the colliding hash.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// StoreAccess inserts an access token hash bound to a user.
func (s *TokenStore) StoreAccess(ctx context.Context, userID uint, hash string, expiresAt time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec := models.AccessToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrTokenCollision
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// StoreRefresh inserts a refresh token hash. FamilyID ties rotations of one
// login session together.
func (s *TokenStore) StoreRefresh(ctx context.Context, rec *models.RefreshToken) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrTokenCollision
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// LookupAccess resolves an access token hash to its owner. Expired and
// revoked records fail identically to absent ones.
func (s *TokenStore) LookupAccess(ctx context.Context, hash string, now time.Time) (userID uint, expiresAt time.Time, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rec models.AccessToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&rec).Error; err != nil {
		return 0, time.Time{}, storeErr(err)
	}
	if rec.RevokedAt != nil || now.After(rec.ExpiresAt) {
		return 0, time.Time{}, ErrTokenInvalid
	}
	return rec.UserID, rec.ExpiresAt, nil
}

// LookupRefresh fetches a refresh record by hash. The caller inspects the
// revocation and expiry state itself — the reuse-detection path needs to see
// revoked records, which a blanket ErrTokenInvalid would hide.
func (s *TokenStore) LookupRefresh(ctx context.Context, hash string) (*models.RefreshToken, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rec models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&rec).Error; err != nil {
		return nil, storeErr(err)
	}
	return &rec, nil
}

// ConsumeRefresh is the unique consumption guard for rotation: a conditional
// update that succeeds at most once per record. Returns false when the record
// was already consumed by a concurrent rotation — the caller must treat that
// as reuse, not retry.
func (s *TokenStore) ConsumeRefresh(tx *gorm.DB, recordID uint, now time.Time) (bool, error) {
	res := tx.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", recordID).
		Update("revoked_at", now)
	if res.Error != nil {
		return false, errors.Join(ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RevokeRefresh revokes a single refresh record. Idempotent: revoking an
// already-revoked record is a no-op, not an error.
func (s *TokenStore) RevokeRefresh(ctx context.Context, recordID uint, now time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", recordID).
		Update("revoked_at", now).Error
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAllForUser revokes every live token for a user across both tables.
// This is the logout-all / compromise-containment primitive.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID uint, now time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", now).Error; err != nil {
			return errors.Join(ErrStoreUnavailable, err)
		}
		if err := tx.Model(&models.AccessToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", now).Error; err != nil {
			return errors.Join(ErrStoreUnavailable, err)
		}
		return nil
	})
}

// RevokeAccessForUser revokes the user's live access tokens only. Used when
// the rotation policy revokes the old lineage's access tokens.
func (s *TokenStore) RevokeAccessForUser(tx *gorm.DB, userID uint, now time.Time) error {
	err := tx.Model(&models.AccessToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Sweep deletes token records past expiry. Revoked-but-unexpired refresh rows
// are retained: deleting them would blind reuse detection. Safe to run
// concurrently and repeatedly.
func (s *TokenStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var removed int64

	res := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.AccessToken{})
	if res.Error != nil {
		return removed, errors.Join(ErrStoreUnavailable, res.Error)
	}
	removed += res.RowsAffected

	res = s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return removed, errors.Join(ErrStoreUnavailable, res.Error)
	}
	removed += res.RowsAffected

	return removed, nil
}
