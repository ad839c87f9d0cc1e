// internal/services/services.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/telemetry"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Actor identifies the caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == models.UserRoleAdmin }

// repoError converts repository sentinels into API errors. resource names the
// record in not-found messages.
func repoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.New(apperrors.CodeValidation, resource+" already exists")
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Database(err)
}

// publish emits a domain event. Failures are logged and counted but never
// fail the operation that produced the event.
func publish(ctx context.Context, pub event.Publisher, m *metrics.Metrics, eventType string, payload interface{}) {
	status := "ok"
	if err := pub.Publish(ctx, eventType, payload); err != nil {
		status = "error"
		logrus.WithError(err).WithField("event", eventType).Warn("Failed to publish event")
	}
	m.EventPublishTotal.WithLabelValues(eventType, status).Inc()
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RequestMeta carries client details recorded on orders and downloads.
type RequestMeta struct {
	IP        string
	UserAgent string
}
