package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Mailer sends plain-text transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type AuthService struct {
	db        *gorm.DB
	mailer    Mailer
	secret    []byte
	ttl       time.Duration
	adminHash string
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewAuthService(db *gorm.DB, mailer Mailer, secret string, ttl time.Duration, adminHash string, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		db:        db,
		mailer:    mailer,
		secret:    []byte(secret),
		ttl:       ttl,
		adminHash: adminHash,
		log:       log,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         utils.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login returns a signed session token for valid, enabled accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = normalizeEmail(email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND disabled = ?", email, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.WithField("email", email).Warn("login failed: unknown or disabled account")
		return "", nil, ErrUnauthorized
	}
	if err != nil {
		return "", nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		s.log.WithField("user_id", user.ID).Warn("login failed: wrong password")
		return "", nil, ErrUnauthorized
	}

	token, err := utils.GenerateJWT(s.secret, user.ID, user.Email, user.Role, s.ttl)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// AdminLogin checks the single admin password against ADMIN_PASSWORD_HASH.
func (s *AuthService) AdminLogin(_ context.Context, password string) (string, error) {
	if s.adminHash == "" {
		return "", fmt.Errorf("%w: admin login disabled", ErrForbidden)
	}
	if !utils.CheckPasswordHash(password, s.adminHash) {
		s.log.Warn("admin login failed")
		return "", ErrUnauthorized
	}
	return utils.GenerateJWT(s.secret, 0, "", utils.RoleAdmin, s.ttl)
}

// ForgotPassword never reveals whether the email exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND disabled = ?", email, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := utils.GenerateNumericCode(6)
	if err != nil {
		return err
	}
	user.ResetToken = code
	user.ResetTokenExp = s.now().Add(15 * time.Minute)
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return err
	}

	subject, body := utils.ResetEmail(code)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("reset email not sent")
		return err
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if code == "" {
		return fmt.Errorf("%w: reset code is required", ErrValidation)
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND reset_token = ?", email, code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && s.now().After(user.ResetTokenExp)) {
		return fmt.Errorf("%w: invalid or expired reset code", ErrValidation)
	}
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetTokenExp = time.Time{}
	return s.db.WithContext(ctx).Save(&user).Error
}

// ParseToken validates a bearer token for the middleware.
func (s *AuthService) ParseToken(token string) (*utils.Claims, error) {
	return utils.ParseJWT(s.secret, token)
}
