// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type AuthService struct {
	users repository.UserRepository
	cfg   *config.Config
	now   Clock
}

type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=50,person_name"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AgreeToTerms    bool   `json:"agreeToTerms"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type AuthResponse struct {
	User         models.ProfileView `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	TokenType    string             `json:"tokenType"`
	ExpiresIn    int                `json:"expiresIn"` // in seconds
}

var errInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredential, "Invalid email or password")

func NewAuthService(users repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		users: users,
		cfg:   cfg,
		now:   systemClock,
	}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}
	if !req.AgreeToTerms {
		return nil, apperrors.Validation(map[string]string{
			"agreeToTerms": "You must agree to the terms of service",
		})
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.New(apperrors.CodeEmailExists, "An account with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Database(err)
	}

	user := &models.User{
		Name:        strings.TrimSpace(req.Name),
		Email:       req.Email,
		Role:        models.UserRoleBuyer,
		Status:      models.UserStatusActive,
		Preferences: models.DefaultPreferences(),
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Failed to hash password", err)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same address.
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.New(apperrors.CodeEmailExists, "An account with this email already exists")
		}
		return nil, apperrors.Database(err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperrors.Database(err)
	}

	if user.PasswordHash == "" || user.CheckPassword(req.Password) != nil {
		return nil, errInvalidCredentials
	}

	if !user.IsActive() {
		return nil, apperrors.New(apperrors.CodeAccountInactive, "Account is "+string(user.Status))
	}

	user, err = s.users.Update(ctx, user.ID, func(u *models.User) error {
		u.UpdateLastLogin(s.now())
		return nil
	})
	if err != nil {
		return nil, repoError(err, "User")
	}

	return s.issueTokens(user)
}

// Refresh exchanges a refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	userID, err := utils.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "Invalid or expired refresh token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "Invalid or expired refresh token")
		}
		return nil, apperrors.Database(err)
	}

	if !user.IsActive() {
		return nil, apperrors.New(apperrors.CodeAccountInactive, "Account is "+string(user.Status))
	}

	return s.issueTokens(user)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.ProfileView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, repoError(err, "User")
	}
	view := user.ToProfileView()
	return &view, nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(
		user.ID,
		user.Email,
		user.Name,
		string(user.Role),
		s.cfg.JWT.AccessTokenTTL,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Failed to generate access token", fmt.Errorf("sign access token: %w", err))
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Failed to generate refresh token", fmt.Errorf("sign refresh token: %w", err))
	}

	return &AuthResponse{
		User:         user.ToProfileView(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600,
	}, nil
}
