package services

import (
	"context"
	"errors"
	"strings"

	"blogapi/models"

	"gorm.io/gorm"
)

type UserService struct {
	db          *gorm.DB
	adminEmails map[string]struct{}
}

func NewUserService(db *gorm.DB, adminEmails []string) *UserService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[normalizeEmail(email)] = struct{}{}
	}
	return &UserService{db: db, adminEmails: admins}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, models.NewValidationError("Incomplete Credentials")
	}
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing > 0 {
		return nil, models.NewConflictError("Email already in use")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	if err := user.HashPassword(); err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("Email already in use")
		}
		return nil, models.NewInternalError(err)
	}

	return user, nil
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !user.CheckPassword(req.Password) {
		return nil, models.NewAuthError("Invalid credentials")
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, userLookupError(err)
	}
	return &user, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, userLookupError(err)
	}
	return &user, nil
}

// GetProfile returns the caller's own account.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	return s.GetUserByID(ctx, userID)
}

func (s *UserService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	return s.GetUserByID(ctx, userID)
}

func (s *UserService) UpdateAbout(ctx context.Context, userID uint, req *models.UpdateAboutRequest) error {
	if err := models.Validate(req); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("about", req.About)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User")
	}
	return nil
}

// Summaries resolves user ids to their public projection in one query.
// Unknown ids are absent from the result.
func (s *UserService) Summaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	out := make(map[uint]models.UserSummary, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "username", "avatar").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

// FindIDsByUsername matches pattern as a case-insensitive substring of usernames.
func (s *UserService) FindIDsByUsername(ctx context.Context, pattern string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username_key LIKE ? ESCAPE '\\'", likePattern(pattern)).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// IsAdmin reports whether the user's email is on the configured admin list.
func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if len(s.adminEmails) == 0 {
		return false, nil
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return false, nil
		}
		return false, err
	}

	_, ok := s.adminEmails[user.Email]
	return ok, nil
}

func userLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("User")
	}
	return models.NewInternalError(err)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
