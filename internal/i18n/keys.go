// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"

	// Authentication
	KeyAuthRequired        = "auth.required"
	KeyAuthInvalidToken    = "auth.invalid_token"
	KeyAuthLoginSuccess    = "auth.login_success"
	KeyAuthRegisterSuccess = "auth.register_success"
	KeyAuthTokenRefreshed  = "auth.token_refreshed"

	// Users
	KeyUserProfileUpdated   = "user.profile_updated"
	KeyUserPasswordChanged  = "user.password_changed"
	KeyUserSellerRegistered = "user.seller_registered"
	KeyUserUpdated          = "user.updated"

	// Templates
	KeyTemplateCreated   = "template.created"
	KeyTemplateUpdated   = "template.updated"
	KeyTemplateSubmitted = "template.submitted"
	KeyTemplateModerated = "template.moderated"

	// Orders
	KeyOrderCreated         = "order.created"
	KeyOrderPaid            = "order.paid"
	KeyOrderCancelled       = "order.cancelled"
	KeyOrderRefunded        = "order.refunded"
	KeyOrderDownloadReady   = "order.download_ready"
	KeyOrderDisputeOpened   = "order.dispute_opened"
	KeyOrderDisputeResolved = "order.dispute_resolved"

	// Reviews
	KeyReviewCreated   = "review.created"
	KeyReviewUpdated   = "review.updated"
	KeyReviewVoted     = "review.voted"
	KeyReviewFlagged   = "review.flagged"
	KeyReviewResponded = "review.responded"
	KeyReviewModerated = "review.moderated"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Errors
	KeyErrorDatabase    = "error.database"
	KeyErrorInternal    = "error.internal"
	KeyErrorRateLimited = "error.rate_limited"
)

// ErrorKey returns the key holding the localized default message for an
// error code.
func ErrorKey(code string) string {
	return "errors." + code
}
