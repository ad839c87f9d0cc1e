package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/cache"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	idempotencyTTL     = 24 * time.Hour
	idempotencyPending = "pending"
)

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the stored response when a client repeats a request
// with the same Idempotency-Key. Keys are scoped to the caller and the route.
// Requests without the header pass through untouched.
func Idempotency(store cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		userID, _ := utils.GetUserIDFromContext(c)
		cacheKey := "idempotency:" + utils.HashString(userID.String()+"|"+c.Request.Method+"|"+c.Request.URL.Path+"|"+key)
		ctx := c.Request.Context()

		acquired, err := store.SetNX(ctx, cacheKey, idempotencyPending, idempotencyTTL)
		if err != nil {
			// Without the cache the request is processed normally.
			logrus.WithError(err).Warn("Idempotency cache unavailable")
			c.Next()
			return
		}

		if !acquired {
			replay(c, store, cacheKey)
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Next()

		status := c.Writer.Status()
		if status >= 500 || !json.Valid(writer.body.Bytes()) {
			if err := store.Del(ctx, cacheKey); err != nil {
				logrus.WithError(err).Warn("Failed to release idempotency key")
			}
			return
		}

		stored, _ := json.Marshal(storedResponse{Status: status, Body: writer.body.Bytes()})
		if err := store.Set(ctx, cacheKey, string(stored), idempotencyTTL); err != nil {
			logrus.WithError(err).Warn("Failed to store idempotent response")
		}
	}
}

func replay(c *gin.Context, store cache.Store, cacheKey string) {
	value, err := store.Get(c.Request.Context(), cacheKey)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		utils.HandleError(c, apperrors.Wrap(apperrors.CodeInternal, "Idempotency cache unavailable", err))
		c.Abort()
		return
	}

	var stored storedResponse
	if value == "" || value == idempotencyPending || json.Unmarshal([]byte(value), &stored) != nil {
		utils.HandleError(c, apperrors.InvalidState("A request with this Idempotency-Key is already in progress"))
		c.Abort()
		return
	}

	c.Header(ReplayedHeader, "true")
	c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
	c.Abort()
}
