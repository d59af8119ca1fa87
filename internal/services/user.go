package services

import (
	"context"
	"errors"
	"unicode"

	"github.com/vetrai/auth-service/internal/models"
	"github.com/vetrai/auth-service/internal/utils"
	"gorm.io/gorm"
)

// UserService handles registration, profile updates and the admin-facing user
// management operations. Authorization (rank + organization scope) is checked
// here against the caller's UserContext, not left to handlers.
type UserService struct {
	db    *gorm.DB
	auth  *AuthService
	audit AuditSink
}

func NewUserService(db *gorm.DB, auth *AuthService, audit AuditSink) *UserService {
	if audit == nil {
		audit = NoOpSink{}
	}
	return &UserService{db: db, auth: auth, audit: audit}
}

type RegisterRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required"`
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name" binding:"required"`
	OrganizationID uint   `json:"organization_id" binding:"required"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type AdminUpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"is_active"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ValidatePasswordStrength enforces the minimum bar for new passwords:
// at least 8 characters with an upper, a lower and a digit.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new account with the base user role. Roles are only ever
// assigned by admins afterwards; registration cannot mint privilege.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest, clientIP, userAgent string) (*models.User, error) {
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:          req.Email,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           string(RoleUser),
		OrganizationID: req.OrganizationID,
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	s.audit.Emit(ctx, AuditEvent{
		UserID:         &user.ID,
		OrganizationID: &user.OrganizationID,
		Action:         AuditUserRegistered,
		ResourceType:   "user",
		ResourceID:     &user.ID,
		IP:             clientIP,
		UserAgent:      userAgent,
	})
	return &user, nil
}

// GetByID fetches a user visible to the caller: own organization only, unless
// the caller is super_admin.
func (s *UserService) GetByID(ctx context.Context, caller UserContext, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if err := RequireOrg(caller, user.OrganizationID); err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns users the caller may see, org-scoped for everyone below
// super_admin.
func (s *UserService) List(ctx context.Context, caller UserContext, offset, limit int) ([]models.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if caller.Role != RoleSuperAdmin {
		query = query.Where("organization_id = ?", caller.OrganizationID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Join(ErrStoreUnavailable, err)
	}

	var users []models.User
	if err := query.Offset(offset).Limit(limit).Order("id").Find(&users).Error; err != nil {
		return nil, 0, errors.Join(ErrStoreUnavailable, err)
	}
	return users, total, nil
}

// UpdateProfile applies self-service profile changes. Role and active flag
// are deliberately out of reach here.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return &user, nil
}

// AdminUpdate applies admin changes to a user in the caller's scope. Role
// assignments are validated against the closed role set; only super_admin may
// grant super_admin.
func (s *UserService) AdminUpdate(ctx context.Context, caller UserContext, userID uint, req *AdminUpdateUserRequest, clientIP, userAgent string) (*models.User, error) {
	user, err := s.GetByID(ctx, caller, userID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		if !ValidRole(*req.Role) {
			return nil, errors.New("unknown role: " + *req.Role)
		}
		if Role(*req.Role) == RoleSuperAdmin && caller.Role != RoleSuperAdmin {
			return nil, ErrInsufficientRole
		}
		if user.Role != *req.Role {
			s.audit.Emit(ctx, AuditEvent{
				UserID:         &caller.UserID,
				OrganizationID: &user.OrganizationID,
				Action:         AuditRoleChanged,
				ResourceType:   "user",
				ResourceID:     &user.ID,
				Details:        user.Role + " -> " + *req.Role,
				IP:             clientIP,
				UserAgent:      userAgent,
			})
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	// Deactivation cuts every live session immediately.
	if req.IsActive != nil && !*req.IsActive {
		if err := s.auth.RevokeAllForUser(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Deactivate soft-deactivates an account and revokes all its tokens. Users
// are never physically deleted; the token audit trail must stay coherent.
func (s *UserService) Deactivate(ctx context.Context, caller UserContext, userID uint, clientIP, userAgent string) error {
	user, err := s.GetByID(ctx, caller, userID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("is_active", false).Error; err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if err := s.auth.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}

	s.audit.Emit(ctx, AuditEvent{
		UserID:         &caller.UserID,
		OrganizationID: &user.OrganizationID,
		Action:         AuditUserDeactivated,
		ResourceType:   "user",
		ResourceID:     &user.ID,
		IP:             clientIP,
		UserAgent:      userAgent,
	})
	return nil
}

// ChangePassword verifies the old password, strength-checks the new one and
// rehashes. All other sessions are revoked so a stolen refresh token does not
// survive a password change.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest, clientIP, userAgent string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return errors.Join(ErrStoreUnavailable, err)
	}

	if !utils.CheckPassword(req.OldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := ValidatePasswordStrength(req.NewPassword); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	if err := s.auth.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}

	s.audit.Emit(ctx, AuditEvent{
		UserID:         &user.ID,
		OrganizationID: &user.OrganizationID,
		Action:         AuditPasswordChanged,
		ResourceType:   "user",
		ResourceID:     &user.ID,
		IP:             clientIP,
		UserAgent:      userAgent,
	})
	return nil
}

// SeedSuperAdminIfNotExists creates the bootstrap super_admin account when
// the users table has none.
func (s *UserService) SeedSuperAdminIfNotExists(ctx context.Context, email, password string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", string(RoleSuperAdmin)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Email:          email,
		PasswordHash:   hash,
		FirstName:      "Platform",
		LastName:       "Admin",
		Role:           string(RoleSuperAdmin),
		OrganizationID: 1,
		IsActive:       true,
		IsVerified:     true,
	}
	return s.db.WithContext(ctx).Create(&admin).Error
}
