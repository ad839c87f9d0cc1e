// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/i18n"
)

// Context keys set by the auth and i18n middleware.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextEmail    = "email"
	ContextLang     = "lang"
)

type APIResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Meta    interface{}       `json:"meta,omitempty"`
}

func SuccessResponse(c *gin.Context, messageKey string, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: i18n.T(GetLangFromContext(c), messageKey),
		Data:    data,
	})
}

func CreatedResponse(c *gin.Context, messageKey string, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Message: i18n.T(GetLangFromContext(c), messageKey),
		Data:    data,
	})
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: i18n.T(GetLangFromContext(c), i18n.KeySuccess),
		Data:    result.Data,
		Meta: gin.H{
			"pagination": gin.H{
				"page":       result.Page,
				"limit":      result.Limit,
				"total":      result.Total,
				"totalPages": result.TotalPages,
			},
		},
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code apperrors.Code, message string, fields map[string]string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: message,
		Error:   string(code),
		Errors:  fields,
	})
}

func UnauthorizedResponse(c *gin.Context, messageKey string) {
	if messageKey == "" {
		messageKey = i18n.KeyAuthRequired
	}
	ErrorResponse(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, i18n.T(GetLangFromContext(c), messageKey), nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, apperrors.CodeForbidden, message, nil)
}

// BindJSON decodes the request body into req. On failure it writes the error
// envelope and returns false. Field validation happens in the services.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleError(c, apperrors.Validation(map[string]string{"body": "Invalid request body"}))
		return false
	}
	return true
}

// ValidationError validates s and returns a VALIDATION_ERROR carrying the
// field messages, or nil when s is valid.
func ValidationError(s interface{}) error {
	err := ValidateStruct(s)
	if err == nil {
		return nil
	}
	fields := ValidationErrors(err)
	if len(fields) == 0 {
		fields = map[string]string{"body": err.Error()}
	}
	return apperrors.Validation(fields)
}

// HandleError writes the envelope for err. Domain errors keep their code and
// message; anything else is logged and reported as a generic database error.
func HandleError(c *gin.Context, err error) {
	lang := GetLangFromContext(c)

	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Database(err)
	}

	switch appErr.Code {
	case apperrors.CodeDatabase, apperrors.CodeInternal:
		logrus.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"code":   appErr.Code,
		}).WithError(appErr.Err).Error("Request failed")
	}

	message := appErr.Message
	switch appErr.Code {
	case apperrors.CodeDatabase:
		message = i18n.T(lang, i18n.KeyErrorDatabase)
	case apperrors.CodeInternal:
		message = i18n.T(lang, i18n.KeyErrorInternal)
	case apperrors.CodeValidation:
		message = i18n.T(lang, i18n.KeyValidationInvalid)
	default:
		if localized, found := i18n.Lookup(lang, i18n.ErrorKey(string(appErr.Code))); found {
			message = localized
		}
	}

	ErrorResponse(c, appErr.HTTPStatus(), appErr.Code, message, appErr.Fields)
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get(ContextLang); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return i18n.DefaultLanguage()
}

func GetUserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	if userID, exists := c.Get(ContextUserID); exists {
		if id, ok := userID.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func GetUserRoleFromContext(c *gin.Context) (string, bool) {
	if role, exists := c.Get(ContextUserRole); exists {
		if roleStr, ok := role.(string); ok {
			return roleStr, true
		}
	}
	return "", false
}

// ParseUUIDParam reads a path parameter as a UUID. A malformed value is
// reported as not found.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.NotFound("Resource")
	}
	return id, nil
}
