// internal/models/user.go
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
)

// PasswordCost is the bcrypt work factor for stored password hashes.
const PasswordCost = 12

type User struct {
	BaseModel
	Name            string          `json:"name" gorm:"size:100;not null"`
	Email           string          `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string          `json:"-" gorm:"size:255"`
	EmailVerifiedAt *time.Time      `json:"emailVerified,omitempty"`
	Image           string          `json:"image,omitempty" gorm:"size:500"`
	Role            UserRole        `json:"role" gorm:"type:varchar(20);not null;default:'buyer';index"`
	Profile         UserProfile     `json:"profile" gorm:"type:jsonb;serializer:json"`
	SellerInfo      *SellerInfo     `json:"sellerInfo,omitempty" gorm:"type:jsonb;serializer:json"`
	Preferences     UserPreferences `json:"preferences" gorm:"type:jsonb;serializer:json"`
	Status          UserStatus      `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	LastLoginAt     *time.Time      `json:"lastLoginAt,omitempty"`
}

type UserProfile struct {
	Bio         string      `json:"bio,omitempty"`
	Website     string      `json:"website,omitempty"`
	Location    string      `json:"location,omitempty"`
	SocialLinks SocialLinks `json:"socialLinks"`
}

type SocialLinks struct {
	GitHub   string `json:"github,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

type SellerInfo struct {
	IsVerified       bool            `json:"isVerified"`
	VerificationDate *time.Time      `json:"verificationDate,omitempty"`
	BusinessName     string          `json:"businessName,omitempty"`
	TaxID            string          `json:"taxId,omitempty"`
	PaymentInfo      PaymentInfo     `json:"paymentInfo"`
	Rating           RatingSummary   `json:"rating"`
	TotalSales       int64           `json:"totalSales"`
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
}

type PaymentInfo struct {
	PayPalEmail     string `json:"paypalEmail,omitempty"`
	StripeAccountID string `json:"stripeAccountId,omitempty"`
}

type UserPreferences struct {
	Language      Language             `json:"language"`
	Currency      Currency             `json:"currency"`
	Notifications NotificationSettings `json:"notifications"`
	Theme         Theme                `json:"theme"`
}

type NotificationSettings struct {
	Email     bool `json:"email"`
	Push      bool `json:"push"`
	Marketing bool `json:"marketing"`
}

// DefaultPreferences are applied to newly registered users.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Language: LanguageVietnamese,
		Currency: CurrencyVND,
		Notifications: NotificationSettings{
			Email:     true,
			Push:      true,
			Marketing: false,
		},
		Theme: ThemeSystem,
	}
}

var ErrPasswordRequired = apperrors.Validation(map[string]string{
	"password": "Password is required",
})

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// Validate enforces that accounts without an external identity image carry a password.
func (u *User) Validate() error {
	if u.PasswordHash == "" && u.Image == "" {
		return ErrPasswordRequired
	}
	return nil
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

func (u *User) UpdateLastLogin(now time.Time) {
	u.LastLoginAt = &now
}

// UpgradeTo changes the user's role. Becoming a seller initializes an
// unverified seller sub-record with zeroed stats if none exists yet.
func (u *User) UpgradeTo(role UserRole) {
	u.Role = role
	if role == UserRoleSeller && u.SellerInfo == nil {
		u.SellerInfo = &SellerInfo{
			IsVerified:    false,
			Rating:        RatingSummary{},
			TotalSales:    0,
			TotalEarnings: decimal.Zero,
		}
	}
}

// RecordSale adds a completed sale to the seller totals.
func (u *User) RecordSale(amount decimal.Decimal) {
	if u.SellerInfo == nil {
		u.SellerInfo = &SellerInfo{TotalEarnings: decimal.Zero}
	}
	u.SellerInfo.TotalSales++
	u.SellerInfo.TotalEarnings = u.SellerInfo.TotalEarnings.Add(amount)
}

func (u *User) VerifySeller(now time.Time) error {
	if u.SellerInfo == nil || u.Role != UserRoleSeller {
		return apperrors.InvalidState("User is not a seller")
	}
	u.SellerInfo.IsVerified = true
	u.SellerInfo.VerificationDate = &now
	return nil
}

// ProfileView is the sanitized user shape returned by profile endpoints.
// Seller details are only included for sellers.
type ProfileView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Image       string          `json:"image,omitempty"`
	Role        UserRole        `json:"role"`
	Status      UserStatus      `json:"status"`
	Profile     UserProfile     `json:"profile"`
	Preferences UserPreferences `json:"preferences"`
	SellerInfo  *SellerInfo     `json:"sellerInfo,omitempty"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (u *User) ToProfileView() ProfileView {
	view := ProfileView{
		ID:          u.ID.String(),
		Name:        u.Name,
		Email:       u.Email,
		Image:       u.Image,
		Role:        u.Role,
		Status:      u.Status,
		Profile:     u.Profile,
		Preferences: u.Preferences,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.Role == UserRoleSeller {
		view.SellerInfo = u.SellerInfo
	}
	return view
}
