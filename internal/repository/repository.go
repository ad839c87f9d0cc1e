// Package repository persists marketplace records. Every mutation of an
// existing record goes through Update, which loads the record, applies the
// mutator and saves it while holding an exclusive lock on that record, so
// concurrent mutators on the same record never lose each other's writes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type UserQuery struct {
	utils.PaginationParams
	Role   models.UserRole
	Status models.UserStatus
}

type TemplateQuery struct {
	utils.PaginationParams
	SellerID    *uuid.UUID
	Status      models.TemplateStatus
	PricingType models.PricingType
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Tags        []string
}

type OrderQuery struct {
	utils.PaginationParams
	Status models.OrderStatus
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.User) error) (*models.User, error)
	List(ctx context.Context, q UserQuery) ([]models.User, int64, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, tpl *models.Template) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	FindBySlug(ctx context.Context, slug string) (*models.Template, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Template) error) (*models.Template, error)
	Search(ctx context.Context, q TemplateQuery) ([]models.Template, int64, error)
	Featured(ctx context.Context, now time.Time, limit int) ([]models.Template, error)
	Popular(ctx context.Context, limit int) ([]models.Template, error)
	IncrementStat(ctx context.Context, id uuid.UUID, stat models.TemplateStat, delta int64) error
	SetRating(ctx context.Context, id uuid.UUID, rating models.RatingSummary) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Order) error) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, q OrderQuery) ([]models.Order, int64, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, q OrderQuery) ([]models.Order, int64, error)
	RecentSales(ctx context.Context, limit int) ([]models.Order, error)
	FindCompletedPurchase(ctx context.Context, orderID, buyerID, templateID uuid.UUID) (*models.Order, error)
	DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Review) error) (*models.Review, error)
	ListByTemplate(ctx context.Context, templateID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error)
	ListByReviewer(ctx context.Context, reviewerID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error)
	ListPendingModeration(ctx context.Context, params utils.PaginationParams) ([]models.Review, int64, error)
	TemplateRating(ctx context.Context, templateID uuid.UUID) (models.RatingBreakdown, error)
	SellerRating(ctx context.Context, sellerID uuid.UUID) (models.RatingSummary, error)
}

type AuditRepository interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Users     UserRepository
	Templates TemplateRepository
	Orders    OrderRepository
	Reviews   ReviewRepository
	Audit     AuditRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks that the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
