package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

const testPassword = "Secret123"

func newAuthServices(t *testing.T) (*AuthService, *UserService, repository.UserRepository) {
	t.Helper()
	cfg := testConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	users := repository.NewMemoryStore().Users
	return NewAuthService(users, cfg), NewUserService(users), users
}

func registerRequest(email string) *RegisterRequest {
	return &RegisterRequest{
		Name:            "Nguyen Van A",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		AgreeToTerms:    true,
	}
}

func TestRegister(t *testing.T) {
	auth, _, _ := newAuthServices(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, registerRequest("  New.User@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", user.Email)
	assert.Equal(t, models.UserRoleBuyer, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, models.DefaultPreferences(), user.Preferences)
	assert.Nil(t, user.SellerInfo)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.NoError(t, user.CheckPassword(testPassword))

	_, err = auth.Register(ctx, registerRequest("new.user@example.com"))
	requireCode(t, err, apperrors.CodeEmailExists)
}

func TestRegisterValidation(t *testing.T) {
	auth, _, _ := newAuthServices(t)
	ctx := context.Background()

	req := registerRequest("buyer@example.com")
	req.ConfirmPassword = "Secret124"
	_, err := auth.Register(ctx, req)
	requireCode(t, err, apperrors.CodeValidation)
	appErr, _ := apperrors.As(err)
	assert.Contains(t, appErr.Fields, "confirmPassword")

	req = registerRequest("buyer@example.com")
	req.Password, req.ConfirmPassword = "weakpass", "weakpass"
	_, err = auth.Register(ctx, req)
	requireCode(t, err, apperrors.CodeValidation)

	req = registerRequest("buyer@example.com")
	req.AgreeToTerms = false
	_, err = auth.Register(ctx, req)
	requireCode(t, err, apperrors.CodeValidation)
	appErr, _ = apperrors.As(err)
	assert.Contains(t, appErr.Fields, "agreeToTerms")
}

func TestLogin(t *testing.T) {
	auth, _, users := newAuthServices(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, registerRequest("buyer@example.com"))
	require.NoError(t, err)

	_, err = auth.Login(ctx, &LoginRequest{Email: "buyer@example.com", Password: "Wrong1234"})
	requireCode(t, err, apperrors.CodeInvalidCredential)
	_, err = auth.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: testPassword})
	requireCode(t, err, apperrors.CodeInvalidCredential)

	resp, err := auth.Login(ctx, &LoginRequest{Email: " BUYER@example.com  ", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.NotNil(t, resp.User.LastLoginAt)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.UserID)
	assert.Equal(t, string(models.UserRoleBuyer), claims.Role)

	_, err = users.Update(ctx, registered.ID, func(u *models.User) error {
		u.Status = models.UserStatusSuspended
		return nil
	})
	require.NoError(t, err)
	_, err = auth.Login(ctx, &LoginRequest{Email: "buyer@example.com", Password: testPassword})
	requireCode(t, err, apperrors.CodeAccountInactive)
}

func TestRefresh(t *testing.T) {
	auth, _, _ := newAuthServices(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, registerRequest("buyer@example.com"))
	require.NoError(t, err)
	login, err := auth.Login(ctx, &LoginRequest{Email: "buyer@example.com", Password: testPassword})
	require.NoError(t, err)

	refreshed, err := auth.Refresh(ctx, &RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = auth.Refresh(ctx, &RefreshRequest{RefreshToken: login.AccessToken})
	requireCode(t, err, apperrors.CodeUnauthorized)

	orphan, err := utils.GenerateRefreshToken(uuid.New(), 1)
	require.NoError(t, err)
	_, err = auth.Refresh(ctx, &RefreshRequest{RefreshToken: orphan})
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestRegisterSeller(t *testing.T) {
	auth, users, _ := newAuthServices(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, registerRequest("buyer@example.com"))
	require.NoError(t, err)

	req := &RegisterSellerRequest{BusinessName: "Pixel Studio", TaxID: "0312345678"}
	view, err := users.RegisterSeller(ctx, user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleSeller, view.Role)
	require.NotNil(t, view.SellerInfo)
	assert.Equal(t, "Pixel Studio", view.SellerInfo.BusinessName)
	assert.False(t, view.SellerInfo.IsVerified)
	assert.True(t, view.SellerInfo.TotalEarnings.IsZero())

	_, err = users.RegisterSeller(ctx, user.ID, req)
	requireCode(t, err, apperrors.CodeAlreadySeller)

	verified, err := users.VerifySeller(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.SellerInfo.IsVerified)
}

func TestChangePassword(t *testing.T) {
	auth, users, _ := newAuthServices(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, registerRequest("buyer@example.com"))
	require.NoError(t, err)

	err = users.ChangePassword(ctx, user.ID, &ChangePasswordRequest{
		CurrentPassword:    "Wrong1234",
		NewPassword:        "Another123",
		ConfirmNewPassword: "Another123",
	})
	requireCode(t, err, apperrors.CodeValidation)

	require.NoError(t, users.ChangePassword(ctx, user.ID, &ChangePasswordRequest{
		CurrentPassword:    testPassword,
		NewPassword:        "Another123",
		ConfirmNewPassword: "Another123",
	}))

	_, err = auth.Login(ctx, &LoginRequest{Email: "buyer@example.com", Password: "Another123"})
	assert.NoError(t, err)
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	auth, users, _ := newAuthServices(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, registerRequest("buyer@example.com"))
	require.NoError(t, err)

	name := "Tran Thi B"
	view, err := users.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{
		Name:        &name,
		Preferences: &PreferencesInput{Language: models.LanguageEnglish},
	})
	require.NoError(t, err)
	assert.Equal(t, name, view.Name)
	assert.Equal(t, models.LanguageEnglish, view.Preferences.Language)
	assert.Equal(t, models.CurrencyVND, view.Preferences.Currency)
	assert.True(t, view.Preferences.Notifications.Email)

	bad := "not a url"
	_, err = users.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{Profile: &ProfileInput{Website: bad}})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestEnsureAdmin(t *testing.T) {
	_, users, repo := newAuthServices(t)
	ctx := context.Background()

	require.NoError(t, users.EnsureAdmin(ctx, config.SeedConfig{AdminEmail: "admin@example.com"}))
	_, err := repo.FindByEmail(ctx, "admin@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	seed := config.SeedConfig{AdminEmail: "Admin@Example.com", AdminPassword: "Admin1234", AdminName: "Admin"}
	require.NoError(t, users.EnsureAdmin(ctx, seed))
	require.NoError(t, users.EnsureAdmin(ctx, seed))

	admin, err := repo.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, admin.Role)

	count, err := repo.CountByRole(ctx, models.UserRoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListUsersFiltersByRole(t *testing.T) {
	auth, users, _ := newAuthServices(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := auth.Register(ctx, registerRequest(email))
		require.NoError(t, err)
	}
	b, err := auth.Login(ctx, &LoginRequest{Email: "b@example.com", Password: testPassword})
	require.NoError(t, err)
	id, err := uuid.Parse(b.User.ID)
	require.NoError(t, err)
	_, err = users.ChangeRole(ctx, id, &ChangeRoleRequest{Role: models.UserRoleSeller})
	require.NoError(t, err)

	result, err := users.ListUsers(ctx, &UserListRequest{Role: models.UserRoleSeller})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Total)
}
