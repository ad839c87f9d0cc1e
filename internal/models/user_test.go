package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("Secret123"))

	assert.NotEqual(t, "Secret123", u.PasswordHash)
	assert.NoError(t, u.CheckPassword("Secret123"))
	assert.Error(t, u.CheckPassword("secret123"))
}

func TestValidateRequiresPasswordUnlessImage(t *testing.T) {
	u := &User{Email: "a@b.c"}
	assert.ErrorIs(t, u.Validate(), ErrPasswordRequired)

	u.Image = "https://avatars.example/a.png"
	assert.NoError(t, u.Validate())
}

func TestUpgradeToSellerInitializesSellerInfo(t *testing.T) {
	u := &User{Role: UserRoleBuyer}
	u.UpgradeTo(UserRoleSeller)

	require.NotNil(t, u.SellerInfo)
	assert.Equal(t, UserRoleSeller, u.Role)
	assert.False(t, u.SellerInfo.IsVerified)
	assert.Zero(t, u.SellerInfo.TotalSales)
	assert.True(t, u.SellerInfo.TotalEarnings.IsZero())

	u.SellerInfo.BusinessName = "Acme"
	u.UpgradeTo(UserRoleSeller)
	assert.Equal(t, "Acme", u.SellerInfo.BusinessName)
}

func TestRecordSale(t *testing.T) {
	u := &User{}
	u.UpgradeTo(UserRoleSeller)
	u.RecordSale(decimal.RequireFromString("19.99"))
	u.RecordSale(decimal.RequireFromString("0.01"))

	assert.Equal(t, int64(2), u.SellerInfo.TotalSales)
	assert.True(t, u.SellerInfo.TotalEarnings.Equal(decimal.NewFromInt(20)))
}

func TestProfileViewHidesSellerInfoForBuyers(t *testing.T) {
	u := &User{Name: "Lan", Email: "lan@example.com", Role: UserRoleAdmin, SellerInfo: &SellerInfo{BusinessName: "x"}}
	require.NoError(t, u.SetPassword("Secret123"))
	assert.Nil(t, u.ToProfileView().SellerInfo)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Secret123")
	assert.NotContains(t, string(raw), "passwordHash")

	u.Role = UserRoleSeller
	assert.NotNil(t, u.ToProfileView().SellerInfo)
}

func TestVerifySeller(t *testing.T) {
	u := &User{Role: UserRoleBuyer}
	assert.Error(t, u.VerifySeller(time.Now()))

	u.UpgradeTo(UserRoleSeller)
	require.NoError(t, u.VerifySeller(time.Now()))
	assert.True(t, u.SellerInfo.IsVerified)
}

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences()
	assert.Equal(t, LanguageVietnamese, p.Language)
	assert.Equal(t, CurrencyVND, p.Currency)
	assert.True(t, p.Notifications.Email)
	assert.True(t, p.Notifications.Push)
	assert.False(t, p.Notifications.Marketing)
	assert.Equal(t, ThemeSystem, p.Theme)
}
