// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type UserService struct {
	users repository.UserRepository
	now   Clock
}

type UpdateProfileRequest struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,min=2,max=50,person_name"`
	Image       *string           `json:"image,omitempty" validate:"omitempty,url"`
	Profile     *ProfileInput     `json:"profile,omitempty"`
	Preferences *PreferencesInput `json:"preferences,omitempty"`
}

type ProfileInput struct {
	Bio         string           `json:"bio" validate:"max=500"`
	Website     string           `json:"website" validate:"omitempty,url"`
	Location    string           `json:"location" validate:"max=100"`
	SocialLinks SocialLinksInput `json:"socialLinks"`
}

type SocialLinksInput struct {
	GitHub   string `json:"github" validate:"omitempty,url"`
	LinkedIn string `json:"linkedin" validate:"omitempty,url"`
	Twitter  string `json:"twitter" validate:"omitempty,url"`
}

type PreferencesInput struct {
	Language      models.Language              `json:"language" validate:"omitempty,oneof=vi en zh hi"`
	Currency      models.Currency              `json:"currency" validate:"omitempty,oneof=VND USD EUR"`
	Theme         models.Theme                 `json:"theme" validate:"omitempty,oneof=light dark system"`
	Notifications *models.NotificationSettings `json:"notifications,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,strong_password"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

type RegisterSellerRequest struct {
	BusinessName string           `json:"businessName" validate:"required,min=2,max=100"`
	TaxID        string           `json:"taxId" validate:"omitempty,min=5,max=20"`
	PaymentInfo  PaymentInfoInput `json:"paymentInfo"`
}

type PaymentInfoInput struct {
	PayPalEmail     string `json:"paypalEmail" validate:"omitempty,email"`
	StripeAccountID string `json:"stripeAccountId" validate:"omitempty,min=5"`
}

type ChangeRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=buyer seller admin"`
}

type ChangeStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active suspended pending banned"`
}

type UserListRequest struct {
	utils.PaginationParams
	Role   models.UserRole   `form:"role" validate:"omitempty,oneof=buyer seller admin"`
	Status models.UserStatus `form:"status" validate:"omitempty,oneof=active suspended pending banned"`
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{
		users: users,
		now:   systemClock,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, repoError(err, "User")
	}
	view := user.ToProfileView()
	return &view, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*models.ProfileView, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, userID, func(u *models.User) error {
		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
		}
		if req.Image != nil {
			u.Image = *req.Image
		}
		if p := req.Profile; p != nil {
			u.Profile = models.UserProfile{
				Bio:      p.Bio,
				Website:  p.Website,
				Location: p.Location,
				SocialLinks: models.SocialLinks{
					GitHub:   p.SocialLinks.GitHub,
					LinkedIn: p.SocialLinks.LinkedIn,
					Twitter:  p.SocialLinks.Twitter,
				},
			}
		}
		if p := req.Preferences; p != nil {
			if p.Language != "" {
				u.Preferences.Language = p.Language
			}
			if p.Currency != "" {
				u.Preferences.Currency = p.Currency
			}
			if p.Theme != "" {
				u.Preferences.Theme = p.Theme
			}
			if p.Notifications != nil {
				u.Preferences.Notifications = *p.Notifications
			}
		}
		return nil
	})
	if err != nil {
		return nil, repoError(err, "User")
	}

	view := user.ToProfileView()
	return &view, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := utils.ValidationError(req); err != nil {
		return err
	}

	_, err := s.users.Update(ctx, userID, func(u *models.User) error {
		if u.PasswordHash == "" || u.CheckPassword(req.CurrentPassword) != nil {
			return apperrors.Validation(map[string]string{
				"currentPassword": "Current password is incorrect",
			})
		}
		if err := u.SetPassword(req.NewPassword); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "Failed to hash password", err)
		}
		return nil
	})
	return repoError(err, "User")
}

// RegisterSeller upgrades a buyer to seller and stores the business details.
func (s *UserService) RegisterSeller(ctx context.Context, userID uuid.UUID, req *RegisterSellerRequest) (*models.ProfileView, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, userID, func(u *models.User) error {
		if u.Role == models.UserRoleSeller {
			return apperrors.New(apperrors.CodeAlreadySeller, "User is already a seller")
		}
		u.UpgradeTo(models.UserRoleSeller)
		u.SellerInfo.BusinessName = strings.TrimSpace(req.BusinessName)
		u.SellerInfo.TaxID = req.TaxID
		u.SellerInfo.PaymentInfo = models.PaymentInfo{
			PayPalEmail:     req.PaymentInfo.PayPalEmail,
			StripeAccountID: req.PaymentInfo.StripeAccountID,
		}
		return nil
	})
	if err != nil {
		return nil, repoError(err, "User")
	}

	logrus.WithField("user_id", user.ID).Info("Seller registered")

	view := user.ToProfileView()
	return &view, nil
}

// Admin operations

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, repoError(err, "User")
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, req *UserListRequest) (utils.PaginationResult, error) {
	if err := utils.ValidationError(req); err != nil {
		return utils.PaginationResult{}, err
	}
	params := utils.NormalizePagination(req.PaginationParams)

	users, total, err := s.users.List(ctx, repository.UserQuery{
		PaginationParams: params,
		Role:             req.Role,
		Status:           req.Status,
	})
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "User")
	}

	views := make([]models.ProfileView, 0, len(users))
	for i := range users {
		views = append(views, users[i].ToProfileView())
	}
	return utils.CreatePaginationResult(views, total, params), nil
}

func (s *UserService) ChangeRole(ctx context.Context, userID uuid.UUID, req *ChangeRoleRequest) (*models.ProfileView, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, userID, func(u *models.User) error {
		u.UpgradeTo(req.Role)
		return nil
	})
	if err != nil {
		return nil, repoError(err, "User")
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User role changed")

	view := user.ToProfileView()
	return &view, nil
}

func (s *UserService) ChangeStatus(ctx context.Context, userID uuid.UUID, req *ChangeStatusRequest) (*models.ProfileView, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, userID, func(u *models.User) error {
		u.Status = req.Status
		return nil
	})
	if err != nil {
		return nil, repoError(err, "User")
	}

	view := user.ToProfileView()
	return &view, nil
}

func (s *UserService) VerifySeller(ctx context.Context, userID uuid.UUID) (*models.ProfileView, error) {
	user, err := s.users.Update(ctx, userID, func(u *models.User) error {
		return u.VerifySeller(s.now())
	})
	if err != nil {
		return nil, repoError(err, "User")
	}

	view := user.ToProfileView()
	return &view, nil
}

// EnsureAdmin creates the configured admin account if no user holds that
// email yet. An existing account is promoted to admin.
func (s *UserService) EnsureAdmin(ctx context.Context, seed config.SeedConfig) error {
	if seed.AdminPassword == "" {
		return nil
	}

	email := models.NormalizeEmail(seed.AdminEmail)
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.UserRoleAdmin {
			return nil
		}
		_, err = s.users.Update(ctx, existing.ID, func(u *models.User) error {
			u.UpgradeTo(models.UserRoleAdmin)
			return nil
		})
		return repoError(err, "User")
	case !errors.Is(err, repository.ErrNotFound):
		return apperrors.Database(err)
	}

	admin := &models.User{
		Name:        seed.AdminName,
		Email:       email,
		Role:        models.UserRoleAdmin,
		Status:      models.UserStatusActive,
		Preferences: models.DefaultPreferences(),
	}
	if err := admin.SetPassword(seed.AdminPassword); err != nil {
		return err
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return repoError(err, "User")
	}

	logrus.WithField("email", email).Info("Admin account created")
	return nil
}
