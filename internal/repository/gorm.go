package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DevViTien/devshop-web-app/internal/database"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// NewGormStore returns a Store backed by PostgreSQL through conn.
func NewGormStore(conn *database.Conn) *Store {
	return &Store{
		Users:     &gormUsers{conn},
		Templates: &gormTemplates{conn},
		Orders:    &gormOrders{conn},
		Reviews:   &gormReviews{conn},
		Audit:     &gormAudit{conn},
		ping:      conn.Ping,
		close:     conn.Close,
	}
}

// translate maps gorm sentinel errors onto the repository ones and leaves
// everything else untouched.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

func create[T any](ctx context.Context, conn *database.Conn, record *T) error {
	db, err := conn.DB(ctx)
	if err != nil {
		return err
	}
	return translate(db.Create(record).Error)
}

func first[T any](ctx context.Context, conn *database.Conn, query string, args ...interface{}) (*T, error) {
	db, err := conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var out T
	if err := db.Where(query, args...).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// updateLocked loads the row with SELECT ... FOR UPDATE, applies fn and saves
// the result in one transaction. An error from fn rolls the transaction back
// and is returned as is.
func updateLocked[T any](ctx context.Context, conn *database.Conn, id uuid.UUID, fn func(*T) error) (*T, error) {
	var out T
	err := database.WithTransaction(ctx, conn, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func paginate[T any](query *gorm.DB, params utils.PaginationParams, sortFields map[string]string) ([]T, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query = utils.ApplySort(query, params, sortFields)
	query = utils.ApplyPagination(query, params)

	var items []T
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch records: %w", err)
	}
	return items, total, nil
}

// Users

type gormUsers struct{ conn *database.Conn }

var userSortFields = map[string]string{
	"created_at":    "created_at",
	"name":          "name",
	"email":         "email",
	"last_login_at": "last_login_at",
}

func (r *gormUsers) Create(ctx context.Context, user *models.User) error {
	return create(ctx, r.conn, user)
}

func (r *gormUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return first[models.User](ctx, r.conn, "id = ?", id)
}

func (r *gormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](ctx, r.conn, "email = ?", email)
}

func (r *gormUsers) Update(ctx context.Context, id uuid.UUID, fn func(*models.User) error) (*models.User, error) {
	return updateLocked(ctx, r.conn, id, fn)
}

func (r *gormUsers) List(ctx context.Context, q UserQuery) ([]models.User, int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&models.User{})
	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		term := "%" + q.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", term, term)
	}
	return paginate[models.User](query, q.PaginationParams, userSortFields)
}

func (r *gormUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.Model(&models.User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

// Templates

type gormTemplates struct{ conn *database.Conn }

var templateSortFields = map[string]string{
	"created_at": "created_at",
	"price":      "pricing_price",
	"rating":     "stats_rating_average",
	"sales":      "stats_sales",
	"views":      "stats_views",
	"downloads":  "stats_downloads",
	"title":      "title",
}

func (r *gormTemplates) Create(ctx context.Context, tpl *models.Template) error {
	return create(ctx, r.conn, tpl)
}

func (r *gormTemplates) FindByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	return first[models.Template](ctx, r.conn, "id = ?", id)
}

func (r *gormTemplates) FindBySlug(ctx context.Context, slug string) (*models.Template, error) {
	return first[models.Template](ctx, r.conn, "slug = ?", slug)
}

func (r *gormTemplates) Update(ctx context.Context, id uuid.UUID, fn func(*models.Template) error) (*models.Template, error) {
	return updateLocked(ctx, r.conn, id, fn)
}

func (r *gormTemplates) Search(ctx context.Context, q TemplateQuery) ([]models.Template, int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&models.Template{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.SellerID != nil {
		query = query.Where("seller_id = ?", *q.SellerID)
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.PricingType != "" {
		query = query.Where("pricing_type = ?", q.PricingType)
	}
	if q.MinPrice != nil {
		query = query.Where("pricing_price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("pricing_price <= ?", *q.MaxPrice)
	}
	if len(q.Tags) > 0 {
		query = query.Where("tags @> ?", pq.StringArray(q.Tags))
	}
	if q.Search != "" {
		query = query.Where(database.TemplateSearchVector+" @@ plainto_tsquery('english', ?)", q.Search)
	}
	return paginate[models.Template](query, q.PaginationParams, templateSortFields)
}

func (r *gormTemplates) Featured(ctx context.Context, now time.Time, limit int) ([]models.Template, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Template
	err = db.Where("status = ? AND featured_until > ?", models.TemplateStatusApproved, now).
		Order("featured_until DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormTemplates) Popular(ctx context.Context, limit int) ([]models.Template, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Template
	err = db.Where("status = ?", models.TemplateStatusApproved).
		Order("stats_sales DESC, stats_rating_average DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormTemplates) IncrementStat(ctx context.Context, id uuid.UUID, stat models.TemplateStat, delta int64) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}
	column := stat.Column()
	res := db.Model(&models.Template{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTemplates) SetRating(ctx context.Context, id uuid.UUID, rating models.RatingSummary) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&models.Template{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"stats_rating_average": rating.Average,
			"stats_rating_count":   rating.Count,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Orders

type gormOrders struct{ conn *database.Conn }

var orderSortFields = map[string]string{
	"created_at":   "created_at",
	"completed_at": "completed_at",
	"status":       "status",
}

func (r *gormOrders) Create(ctx context.Context, order *models.Order) error {
	return create(ctx, r.conn, order)
}

func (r *gormOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return first[models.Order](ctx, r.conn, "id = ?", id)
}

func (r *gormOrders) Update(ctx context.Context, id uuid.UUID, fn func(*models.Order) error) (*models.Order, error) {
	return updateLocked(ctx, r.conn, id, fn)
}

func (r *gormOrders) list(ctx context.Context, column string, id uuid.UUID, q OrderQuery) ([]models.Order, int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, 0, err
	}
	query := db.Model(&models.Order{}).Where(column+" = ?", id)
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	return paginate[models.Order](query, q.PaginationParams, orderSortFields)
}

func (r *gormOrders) ListByBuyer(ctx context.Context, buyerID uuid.UUID, q OrderQuery) ([]models.Order, int64, error) {
	return r.list(ctx, "buyer_id", buyerID, q)
}

func (r *gormOrders) ListBySeller(ctx context.Context, sellerID uuid.UUID, q OrderQuery) ([]models.Order, int64, error) {
	return r.list(ctx, "seller_id", sellerID, q)
}

func (r *gormOrders) RecentSales(ctx context.Context, limit int) ([]models.Order, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	err = db.Where("status = ? AND completed_at IS NOT NULL", models.OrderStatusCompleted).
		Order("completed_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormOrders) FindCompletedPurchase(ctx context.Context, orderID, buyerID, templateID uuid.UUID) (*models.Order, error) {
	return first[models.Order](ctx, r.conn,
		"id = ? AND buyer_id = ? AND template_id = ? AND status = ?",
		orderID, buyerID, templateID, models.OrderStatusCompleted)
}

func (r *gormOrders) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Where("status = ? AND expires_at < ?", models.OrderStatusPending, now).
		Delete(&models.Order{})
	return res.RowsAffected, res.Error
}

// Reviews

type gormReviews struct{ conn *database.Conn }

var reviewSortFields = map[string]string{
	"created_at": "created_at",
	"rating":     "rating",
	"helpful":    "helpful_helpful",
}

func (r *gormReviews) Create(ctx context.Context, review *models.Review) error {
	return create(ctx, r.conn, review)
}

func (r *gormReviews) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	return first[models.Review](ctx, r.conn, "id = ?", id)
}

func (r *gormReviews) Update(ctx context.Context, id uuid.UUID, fn func(*models.Review) error) (*models.Review, error) {
	return updateLocked(ctx, r.conn, id, fn)
}

func (r *gormReviews) ListByTemplate(ctx context.Context, templateID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, 0, err
	}
	query := db.Model(&models.Review{}).
		Where("template_id = ? AND status = ?", templateID, models.ReviewStatusApproved)
	return paginate[models.Review](query, params, reviewSortFields)
}

func (r *gormReviews) ListByReviewer(ctx context.Context, reviewerID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, 0, err
	}
	query := db.Model(&models.Review{}).Where("reviewer_id = ?", reviewerID)
	return paginate[models.Review](query, params, reviewSortFields)
}

func (r *gormReviews) ListPendingModeration(ctx context.Context, params utils.PaginationParams) ([]models.Review, int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, 0, err
	}
	query := db.Model(&models.Review{}).
		Where("status IN ?", []models.ReviewStatus{models.ReviewStatusPending, models.ReviewStatusFlagged})
	return paginate[models.Review](query, params, reviewSortFields)
}

type ratingBucket struct {
	Rating int
	Count  int64
}

func (r *gormReviews) TemplateRating(ctx context.Context, templateID uuid.UUID) (models.RatingBreakdown, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return models.RatingBreakdown{}, err
	}

	var buckets []ratingBucket
	err = db.Model(&models.Review{}).
		Select("rating, COUNT(*) AS count").
		Where("template_id = ? AND status = ?", templateID, models.ReviewStatusApproved).
		Group("rating").
		Scan(&buckets).Error
	if err != nil {
		return models.RatingBreakdown{}, err
	}

	var ratings []int
	for _, b := range buckets {
		for i := int64(0); i < b.Count; i++ {
			ratings = append(ratings, b.Rating)
		}
	}
	return models.NewRatingBreakdown(ratings), nil
}

func (r *gormReviews) SellerRating(ctx context.Context, sellerID uuid.UUID) (models.RatingSummary, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return models.RatingSummary{}, err
	}

	var row struct {
		Average *float64
		Count   int64
	}
	err = db.Model(&models.Review{}).
		Select("AVG(reviews.rating) AS average, COUNT(reviews.id) AS count").
		Joins("JOIN templates ON templates.id = reviews.template_id").
		Where("templates.seller_id = ? AND reviews.status = ?", sellerID, models.ReviewStatusApproved).
		Scan(&row).Error
	if err != nil {
		return models.RatingSummary{}, err
	}
	if row.Average == nil {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: models.RoundRating(*row.Average), Count: row.Count}, nil
}

// Audit

type gormAudit struct{ conn *database.Conn }

func (r *gormAudit) Record(ctx context.Context, entry *models.AuditLog) error {
	return create(ctx, r.conn, entry)
}
