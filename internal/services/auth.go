package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vetrai/auth-service/internal/config"
	"github.com/vetrai/auth-service/internal/models"
	"github.com/vetrai/auth-service/internal/utils"
	"github.com/vetrai/auth-service/pkg/logger"
	"gorm.io/gorm"
)

// AuthService orchestrates the credential lifecycle: login, validation,
// refresh rotation with reuse detection, and logout. It is stateless; every
// request may run on any worker.
type AuthService struct {
	db    *gorm.DB
	store *TokenStore
	cache TokenCache
	audit AuditSink
	cfg   *config.AuthConfig
}

func NewAuthService(db *gorm.DB, store *TokenStore, cache TokenCache, audit AuditSink, cfg *config.AuthConfig) *AuthService {
	if audit == nil {
		audit = NoOpSink{}
	}
	return &AuthService{
		db:    db,
		store: store,
		cache: cache,
		audit: audit,
		cfg:   cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

// Login verifies credentials and mints an access/refresh pair. Unknown email,
// wrong password and deactivated account are indistinguishable to the caller:
// same error, and the password check runs against a dummy hash when the user
// is missing so the timing matches.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.CheckPassword(req.Password, utils.DummyHash())
			s.auditLoginFailed(ctx, nil, clientIP, userAgent, "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		s.auditLoginFailed(ctx, &user, clientIP, userAgent, "wrong password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.auditLoginFailed(ctx, &user, clientIP, userAgent, "inactive account")
		return nil, ErrInvalidCredentials
	}

	// Transparent cost upgrade while the plaintext is in hand. Best-effort:
	// a failed upgrade must not fail the login, but it is logged.
	if utils.NeedsRehash(user.PasswordHash) {
		if newHash, err := utils.HashPassword(req.Password); err == nil {
			if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", newHash).Error; err != nil {
				logger.Warn().Err(err).Uint("user_id", user.ID).Msg("rehash-on-login update failed")
			}
		}
	}

	now := time.Now()
	pair, err := s.issuePair(ctx, &user, uuid.NewString(), clientIP, userAgent, now, nil)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("last_login update failed")
	}

	s.audit.Emit(ctx, AuditEvent{
		UserID:         &user.ID,
		OrganizationID: &user.OrganizationID,
		Action:         AuditLogin,
		ResourceType:   "session",
		IP:             clientIP,
		UserAgent:      userAgent,
	})

	return &LoginResult{
		AccessToken:     pair.accessPlaintext,
		AccessExpireAt:  pair.accessExpireAt,
		RefreshToken:    pair.refreshPlaintext,
		RefreshExpireAt: pair.refreshRecord.ExpiresAt,
		User:            &user,
	}, nil
}

// Validate resolves an access token plaintext to the bound user context.
// A cache hit skips the store lookup; entries never outlive the record.
func (s *AuthService) Validate(ctx context.Context, accessToken string) (*UserContext, error) {
	if accessToken == "" {
		return nil, ErrTokenInvalid
	}
	hash := utils.HashToken(accessToken)
	now := time.Now()

	userID, expiresAt, cached := s.cacheGet(ctx, hash)
	if !cached {
		var err error
		userID, expiresAt, err = s.store.LookupAccess(ctx, hash, now)
		if err != nil {
			return nil, err
		}
		s.cacheSet(ctx, hash, userID, expiresAt)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if !user.IsActive {
		return nil, ErrTokenInvalid
	}

	return &UserContext{
		UserID:         user.ID,
		Email:          user.Email,
		Role:           Role(user.Role),
		OrganizationID: user.OrganizationID,
	}, nil
}

// Refresh rotates a refresh token: the presented token is consumed exactly
// once and replaced by a new pair in the same lineage. Presenting an
// already-consumed token is treated as theft and revokes every live token of
// the owning user. Two racing rotations of the same token cannot both win;
// the loser lands on the reuse path.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrTokenInvalid
	}
	hash := utils.HashToken(refreshToken)
	now := time.Now()

	stored, err := s.store.LookupRefresh(ctx, hash)
	if err != nil {
		return nil, err
	}

	if stored.Revoked() {
		return nil, s.handleReuse(ctx, stored, clientIP, userAgent)
	}
	if stored.Expired(now) {
		return nil, ErrTokenInvalid
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if !user.IsActive {
		return nil, ErrTokenInvalid
	}

	pair, err := s.issuePair(ctx, &user, stored.FamilyID, clientIP, userAgent, now, stored)
	if err != nil {
		if errors.Is(err, errRotationLost) {
			// A concurrent rotation consumed this token first.
			return nil, s.handleReuse(ctx, stored, clientIP, userAgent)
		}
		return nil, err
	}

	s.audit.Emit(ctx, AuditEvent{
		UserID:         &user.ID,
		OrganizationID: &user.OrganizationID,
		Action:         AuditTokenRefreshed,
		ResourceType:   "refresh_token",
		ResourceID:     &stored.ID,
		IP:             clientIP,
		UserAgent:      userAgent,
	})

	return &RefreshResult{
		AccessToken:     pair.accessPlaintext,
		AccessExpireAt:  pair.accessExpireAt,
		RefreshToken:    pair.refreshPlaintext,
		RefreshExpireAt: pair.refreshRecord.ExpiresAt,
	}, nil
}

// Logout revokes the matching refresh record. Idempotent: unknown and
// already-revoked tokens succeed silently, so a double logout never errors.
func (s *AuthService) Logout(ctx context.Context, refreshToken, clientIP, userAgent string) error {
	if refreshToken == "" {
		return nil
	}
	hash := utils.HashToken(refreshToken)

	stored, err := s.store.LookupRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return nil
		}
		return err
	}

	if err := s.store.RevokeRefresh(ctx, stored.ID, time.Now()); err != nil {
		return err
	}

	s.audit.Emit(ctx, AuditEvent{
		UserID:       &stored.UserID,
		Action:       AuditLogout,
		ResourceType: "refresh_token",
		ResourceID:   &stored.ID,
		IP:           clientIP,
		UserAgent:    userAgent,
	})
	return nil
}

// RevokeAllForUser invalidates every live token for a user and clears any
// cached validations. Exposed for password changes and account deactivation.
func (s *AuthService) RevokeAllForUser(ctx context.Context, userID uint) error {
	if err := s.store.RevokeAllForUser(ctx, userID, time.Now()); err != nil {
		return err
	}
	s.cacheInvalidate(ctx, userID)
	s.audit.Emit(ctx, AuditEvent{
		UserID: &userID,
		Action: AuditRevokedAllForUser,
	})
	return nil
}

// errRotationLost signals that ConsumeRefresh affected zero rows.
var errRotationLost = errors.New("refresh rotation lost race")

type issuedPair struct {
	accessPlaintext  string
	accessExpireAt   time.Time
	refreshPlaintext string
	refreshRecord    *models.RefreshToken
}

// issuePair mints and persists an access/refresh pair in one transaction.
// When rotating (old != nil) the old record is consumed inside the same
// transaction via the conditional-update guard, so a crash between the two
// inserts can never leave a half-issued session, and two concurrent
// rotations of one token cannot both commit. A token-hash collision on
// insert aborts the transaction and retries once with freshly minted tokens.
func (s *AuthService) issuePair(ctx context.Context, user *models.User, familyID, clientIP, userAgent string, now time.Time, old *models.RefreshToken) (*issuedPair, error) {
	pair, err := s.issuePairOnce(ctx, user, familyID, clientIP, userAgent, now, old)
	if errors.Is(err, ErrTokenCollision) {
		pair, err = s.issuePairOnce(ctx, user, familyID, clientIP, userAgent, now, old)
	}
	if err != nil {
		return nil, err
	}

	if old != nil && s.cfg.RevokeAccessOnRotate {
		s.cacheInvalidate(ctx, user.ID)
	}
	return pair, nil
}

func (s *AuthService) issuePairOnce(ctx context.Context, user *models.User, familyID, clientIP, userAgent string, now time.Time, old *models.RefreshToken) (*issuedPair, error) {
	accessPlain, accessHash, err := mintToken()
	if err != nil {
		return nil, err
	}
	refreshPlain, refreshHash, err := mintToken()
	if err != nil {
		return nil, err
	}

	accessExpireAt := now.Add(s.cfg.AccessTokenTTL)
	refreshRecord := &models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		FamilyID:    familyID,
		ExpiresAt:   now.Add(s.cfg.RefreshTokenTTL),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if old != nil {
			consumed, err := s.store.ConsumeRefresh(tx, old.ID, now)
			if err != nil {
				return err
			}
			if !consumed {
				return errRotationLost
			}
			if s.cfg.RevokeAccessOnRotate {
				// Strict rotation: every outstanding access token of the
				// user goes down with the consumed refresh token. The
				// replacement pair is inserted after this, so it is
				// unaffected.
				if err := s.store.RevokeAccessForUser(tx, user.ID, now); err != nil {
					return err
				}
			}
		}

		if err := tx.Create(refreshRecord).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrTokenCollision
			}
			return errors.Join(ErrStoreUnavailable, err)
		}

		if old != nil {
			if err := tx.Model(&models.RefreshToken{}).
				Where("id = ?", old.ID).
				Update("replaced_by_token_id", refreshRecord.ID).Error; err != nil {
				return errors.Join(ErrStoreUnavailable, err)
			}
		}

		access := &models.AccessToken{
			UserID:    user.ID,
			TokenHash: accessHash,
			ExpiresAt: accessExpireAt,
		}
		if err := tx.Create(access).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrTokenCollision
			}
			return errors.Join(ErrStoreUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &issuedPair{
		accessPlaintext:  accessPlain,
		accessExpireAt:   accessExpireAt,
		refreshPlaintext: refreshPlain,
		refreshRecord:    refreshRecord,
	}, nil
}

// handleReuse is the anti-replay containment path: a revoked refresh token
// was presented again, so every live token of the owner is revoked and a
// high-priority audit event is recorded. The caller still sees only
// ErrTokenInvalid.
func (s *AuthService) handleReuse(ctx context.Context, stored *models.RefreshToken, clientIP, userAgent string) error {
	logger.Warn().
		Uint("user_id", stored.UserID).
		Str("family_id", stored.FamilyID).
		Str("ip", clientIP).
		Msg("refresh token reuse detected, revoking all sessions")

	if err := s.store.RevokeAllForUser(ctx, stored.UserID, time.Now()); err != nil {
		logger.Error().Err(err).Uint("user_id", stored.UserID).Msg("containment revocation failed")
	}
	s.cacheInvalidate(ctx, stored.UserID)

	s.audit.Emit(ctx, AuditEvent{
		UserID:       &stored.UserID,
		Action:       AuditTokenReuse,
		ResourceType: "refresh_token",
		ResourceID:   &stored.ID,
		Details:      "revoked all live tokens for user",
		IP:           clientIP,
		UserAgent:    userAgent,
	})

	return ErrTokenInvalid
}

func (s *AuthService) auditLoginFailed(ctx context.Context, user *models.User, clientIP, userAgent, detail string) {
	event := AuditEvent{
		Action:    AuditLoginFailed,
		Details:   detail,
		IP:        clientIP,
		UserAgent: userAgent,
	}
	if user != nil {
		event.UserID = &user.ID
		event.OrganizationID = &user.OrganizationID
	}
	s.audit.Emit(ctx, event)
}

func (s *AuthService) cacheGet(ctx context.Context, hash string) (uint, time.Time, bool) {
	if s.cache == nil {
		return 0, time.Time{}, false
	}
	return s.cache.Get(ctx, hash)
}

func (s *AuthService) cacheSet(ctx context.Context, hash string, userID uint, expiresAt time.Time) {
	if s.cache != nil {
		s.cache.Set(ctx, hash, userID, expiresAt)
	}
}

func (s *AuthService) cacheInvalidate(ctx context.Context, userID uint) {
	if s.cache != nil {
		s.cache.InvalidateUser(ctx, userID)
	}
}

// mintToken generates a token plaintext and its storage hash. Insert-time
// hash collisions surface as ErrTokenCollision and are retried by issuePair.
func mintToken() (plaintext, hash string, err error) {
	plaintext, err = utils.GenerateToken()
	if err != nil {
		return "", "", err
	}
	return plaintext, utils.HashToken(plaintext), nil
}
