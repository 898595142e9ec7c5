package services

import (
	"context"
	"strings"

	"podnest/internal/models"
	"podnest/internal/utils"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityService maps external sign-in identities to internal users.
type IdentityService struct {
	db *gorm.DB
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveOrCreateUser returns the user owning email, creating it with zero
// counters on first sign-in. Concurrent first sign-ins with the same email
// all resolve to one row: the insert is ON CONFLICT DO NOTHING against the
// unique email index, followed by a read.
func (s *IdentityService) ResolveOrCreateUser(ctx context.Context, email, displayName, avatarRef string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.Wrap(ErrInvalidInput, "email is required")
	}
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}
	if avatarRef == "" {
		avatarRef = utils.DefaultAvatar(email)
	}

	user := models.User{
		Email:   email,
		Name:    displayName,
		Profile: avatarRef,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return nil, storageErr("create user", res.Error)
	}
	if res.RowsAffected == 1 {
		return &user, nil
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// the conflicting row vanished between insert and read
		return nil, errors.Wrapf(ErrAlreadyExists, "user %s conflicted but could not be read back", email)
	}
	if err != nil {
		return nil, storageErr("resolve user", err)
	}
	return &existing, nil
}

func (s *IdentityService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error; err != nil {
		return nil, storageErr("get user", err)
	}
	return &user, nil
}

func (s *IdentityService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, storageErr("get user by email", err)
	}
	return &user, nil
}

// CompleteOnboarding stores the chosen username and marks the user onboarded.
func (s *IdentityService) CompleteOnboarding(ctx context.Context, userID uint, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.Wrap(ErrInvalidInput, "username is required")
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"name": username, "onboarded": true})
	if res.Error != nil {
		return nil, storageErr("complete onboarding", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "user %d", userID)
	}
	return s.GetUser(ctx, userID)
}
