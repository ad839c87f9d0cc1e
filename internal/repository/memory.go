package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// memoryDB holds all records of the in-memory backend behind a single lock.
// Records are copied on the way in and out so callers never share state with
// the store.
type memoryDB struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*models.User
	templates map[uuid.UUID]*models.Template
	orders    map[uuid.UUID]*models.Order
	reviews   map[uuid.UUID]*models.Review
	audit     []models.AuditLog
	now       func() time.Time
}

// NewMemoryStore returns a Store backed by process memory. It is used for
// local development without PostgreSQL and in tests.
func NewMemoryStore() *Store {
	db := &memoryDB{
		users:     make(map[uuid.UUID]*models.User),
		templates: make(map[uuid.UUID]*models.Template),
		orders:    make(map[uuid.UUID]*models.Order),
		reviews:   make(map[uuid.UUID]*models.Review),
		now:       time.Now,
	}
	return &Store{
		Users:     &memoryUsers{db},
		Templates: &memoryTemplates{db},
		Orders:    &memoryOrders{db},
		Reviews:   &memoryReviews{db},
		Audit:     &memoryAudit{db},
	}
}

func (m *memoryDB) touch(b *models.BaseModel, creating bool) {
	now := m.now()
	if creating && b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.SellerInfo != nil {
		si := *u.SellerInfo
		c.SellerInfo = &si
	}
	return &c
}

func cloneTemplate(t *models.Template) *models.Template {
	c := *t
	c.Tags = cloneStrings(t.Tags)
	c.Technologies = cloneStrings(t.Technologies)
	c.Images.Gallery = cloneStrings(t.Images.Gallery)
	c.Metadata.Compatibility = cloneStrings(t.Metadata.Compatibility)
	c.Metadata.Requirements = cloneStrings(t.Metadata.Requirements)
	c.SEO.Keywords = cloneStrings(t.SEO.Keywords)
	if t.Pricing.Discount != nil {
		d := *t.Pricing.Discount
		c.Pricing.Discount = &d
	}
	return &c
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.Details.Discount != nil {
		d := *o.Details.Discount
		c.Details.Discount = &d
	}
	if o.Details.Tax != nil {
		tx := *o.Details.Tax
		c.Details.Tax = &tx
	}
	if o.Download.History != nil {
		c.Download.History = append([]models.DownloadEntry(nil), o.Download.History...)
	}
	if o.Dispute != nil {
		d := *o.Dispute
		c.Dispute = &d
	}
	return &c
}

func cloneReview(r *models.Review) *models.Review {
	c := *r
	c.Pros = cloneStrings(r.Pros)
	c.Cons = cloneStrings(r.Cons)
	c.HelpfulVotes.Voters = cloneStrings(r.HelpfulVotes.Voters)
	if r.FlagReasons != nil {
		c.FlagReasons = append([]models.FlagReport(nil), r.FlagReasons...)
	}
	if r.EditHistory != nil {
		c.EditHistory = append([]models.ReviewEdit(nil), r.EditHistory...)
	}
	if r.SellerResponse != nil {
		sr := *r.SellerResponse
		c.SellerResponse = &sr
	}
	return &c
}

func byCreatedDesc[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}

// Users

type memoryUsers struct{ db *memoryDB }

func (r *memoryUsers) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.users {
		if existing.Email == user.Email {
			return ErrConflict
		}
	}
	user.EnsureID()
	r.db.touch(&user.BaseModel, true)
	r.db.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *memoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) Update(ctx context.Context, id uuid.UUID, fn func(*models.User) error) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneUser(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.db.touch(&working.BaseModel, false)
	r.db.users[id] = cloneUser(working)
	return working, nil
}

func (r *memoryUsers) List(ctx context.Context, q UserQuery) ([]models.User, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	search := strings.ToLower(q.Search)
	var out []models.User
	for _, u := range r.db.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if q.Status != "" && u.Status != q.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), search) {
			continue
		}
		out = append(out, *cloneUser(u))
	}
	byCreatedDesc(out, func(u models.User) time.Time { return u.CreatedAt })
	return utils.PageSlice(out, q.PaginationParams), int64(len(out)), nil
}

func (r *memoryUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var n int64
	for _, u := range r.db.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// Templates

type memoryTemplates struct{ db *memoryDB }

func (r *memoryTemplates) Create(ctx context.Context, tpl *models.Template) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.templates {
		if existing.Slug == tpl.Slug {
			return ErrConflict
		}
	}
	tpl.EnsureID()
	r.db.touch(&tpl.BaseModel, true)
	r.db.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (r *memoryTemplates) FindByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTemplate(t), nil
}

func (r *memoryTemplates) FindBySlug(ctx context.Context, slug string) (*models.Template, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, t := range r.db.templates {
		if t.Slug == slug {
			return cloneTemplate(t), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryTemplates) Update(ctx context.Context, id uuid.UUID, fn func(*models.Template) error) (*models.Template, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneTemplate(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	for otherID, other := range r.db.templates {
		if otherID != id && other.Slug == working.Slug {
			return nil, ErrConflict
		}
	}
	r.db.touch(&working.BaseModel, false)
	r.db.templates[id] = cloneTemplate(working)
	return working, nil
}

func matchesTemplate(t *models.Template, q TemplateQuery) bool {
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.SellerID != nil && t.SellerID != *q.SellerID {
		return false
	}
	if q.Category != "" && string(t.Category) != q.Category {
		return false
	}
	if q.PricingType != "" && t.Pricing.Type != q.PricingType {
		return false
	}
	if q.MinPrice != nil && t.Pricing.Price.LessThan(*q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && t.Pricing.Price.GreaterThan(*q.MaxPrice) {
		return false
	}
	for _, want := range q.Tags {
		found := false
		for _, tag := range t.Tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Search != "" {
		haystack := strings.ToLower(t.Title + " " + t.Description + " " + strings.Join(t.Tags, " "))
		for _, term := range strings.Fields(strings.ToLower(q.Search)) {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
	}
	return true
}

func sortTemplates(items []models.Template, params utils.PaginationParams) {
	less := func(a, b models.Template) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch params.Sort {
	case "price":
		less = func(a, b models.Template) bool { return a.Pricing.Price.LessThan(b.Pricing.Price) }
	case "rating":
		less = func(a, b models.Template) bool { return a.Stats.Rating.Average < b.Stats.Rating.Average }
	case "sales":
		less = func(a, b models.Template) bool { return a.Stats.Sales < b.Stats.Sales }
	case "views":
		less = func(a, b models.Template) bool { return a.Stats.Views < b.Stats.Views }
	case "downloads":
		less = func(a, b models.Template) bool { return a.Stats.Downloads < b.Stats.Downloads }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if params.Order == "asc" {
			return less(items[i], items[j])
		}
		return less(items[j], items[i])
	})
}

func (r *memoryTemplates) Search(ctx context.Context, q TemplateQuery) ([]models.Template, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []models.Template
	for _, t := range r.db.templates {
		if matchesTemplate(t, q) {
			out = append(out, *cloneTemplate(t))
		}
	}
	sortTemplates(out, q.PaginationParams)
	return utils.PageSlice(out, q.PaginationParams), int64(len(out)), nil
}

func (r *memoryTemplates) Featured(ctx context.Context, now time.Time, limit int) ([]models.Template, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []models.Template
	for _, t := range r.db.templates {
		if t.Status == models.TemplateStatusApproved && t.IsFeatured(now) {
			out = append(out, *cloneTemplate(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FeaturedUntil.After(*out[j].FeaturedUntil) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTemplates) Popular(ctx context.Context, limit int) ([]models.Template, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []models.Template
	for _, t := range r.db.templates {
		if t.Status == models.TemplateStatusApproved {
			out = append(out, *cloneTemplate(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stats.Sales != out[j].Stats.Sales {
			return out[i].Stats.Sales > out[j].Stats.Sales
		}
		return out[i].Stats.Rating.Average > out[j].Stats.Rating.Average
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTemplates) IncrementStat(ctx context.Context, id uuid.UUID, stat models.TemplateStat, delta int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.templates[id]
	if !ok {
		return ErrNotFound
	}
	switch stat {
	case models.StatViews:
		t.Stats.Views += delta
	case models.StatDownloads:
		t.Stats.Downloads += delta
	case models.StatSales:
		t.Stats.Sales += delta
	case models.StatFavorites:
		t.Stats.Favorites += delta
	}
	return nil
}

func (r *memoryTemplates) SetRating(ctx context.Context, id uuid.UUID, rating models.RatingSummary) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.templates[id]
	if !ok {
		return ErrNotFound
	}
	t.Stats.Rating = rating
	return nil
}

// Orders

type memoryOrders struct{ db *memoryDB }

func (r *memoryOrders) Create(ctx context.Context, order *models.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.orders {
		if existing.OrderNumber == order.OrderNumber {
			return ErrConflict
		}
	}
	order.EnsureID()
	r.db.touch(&order.BaseModel, true)
	r.db.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *memoryOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	o, ok := r.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *memoryOrders) Update(ctx context.Context, id uuid.UUID, fn func(*models.Order) error) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneOrder(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.db.touch(&working.BaseModel, false)
	r.db.orders[id] = cloneOrder(working)
	return working, nil
}

func (r *memoryOrders) list(match func(*models.Order) bool, q OrderQuery) ([]models.Order, int64) {
	var out []models.Order
	for _, o := range r.db.orders {
		if !match(o) {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	byCreatedDesc(out, func(o models.Order) time.Time { return o.CreatedAt })
	return utils.PageSlice(out, q.PaginationParams), int64(len(out))
}

func (r *memoryOrders) ListByBuyer(ctx context.Context, buyerID uuid.UUID, q OrderQuery) ([]models.Order, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items, total := r.list(func(o *models.Order) bool { return o.BuyerID == buyerID }, q)
	return items, total, nil
}

func (r *memoryOrders) ListBySeller(ctx context.Context, sellerID uuid.UUID, q OrderQuery) ([]models.Order, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items, total := r.list(func(o *models.Order) bool { return o.SellerID == sellerID }, q)
	return items, total, nil
}

func (r *memoryOrders) RecentSales(ctx context.Context, limit int) ([]models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []models.Order
	for _, o := range r.db.orders {
		if o.Status == models.OrderStatusCompleted && o.CompletedAt != nil {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryOrders) FindCompletedPurchase(ctx context.Context, orderID, buyerID, templateID uuid.UUID) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	o, ok := r.db.orders[orderID]
	if !ok || o.BuyerID != buyerID || o.TemplateID != templateID || o.Status != models.OrderStatusCompleted {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *memoryOrders) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var removed int64
	for id, o := range r.db.orders {
		if o.Status == models.OrderStatusPending && o.ExpiresAt != nil && o.ExpiresAt.Before(now) {
			delete(r.db.orders, id)
			removed++
		}
	}
	return removed, nil
}

// Reviews

type memoryReviews struct{ db *memoryDB }

func (r *memoryReviews) Create(ctx context.Context, review *models.Review) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.reviews {
		if existing.OrderID == review.OrderID {
			return ErrConflict
		}
	}
	review.EnsureID()
	r.db.touch(&review.BaseModel, true)
	r.db.reviews[review.ID] = cloneReview(review)
	return nil
}

func (r *memoryReviews) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rv, ok := r.db.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReview(rv), nil
}

func (r *memoryReviews) Update(ctx context.Context, id uuid.UUID, fn func(*models.Review) error) (*models.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneReview(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.db.touch(&working.BaseModel, false)
	r.db.reviews[id] = cloneReview(working)
	return working, nil
}

func (r *memoryReviews) list(match func(*models.Review) bool, params utils.PaginationParams) ([]models.Review, int64) {
	var out []models.Review
	for _, rv := range r.db.reviews {
		if match(rv) {
			out = append(out, *cloneReview(rv))
		}
	}
	switch params.Sort {
	case "rating":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	case "helpful":
		sort.SliceStable(out, func(i, j int) bool { return out[i].HelpfulVotes.Helpful > out[j].HelpfulVotes.Helpful })
	default:
		byCreatedDesc(out, func(rv models.Review) time.Time { return rv.CreatedAt })
	}
	return utils.PageSlice(out, params), int64(len(out))
}

func (r *memoryReviews) ListByTemplate(ctx context.Context, templateID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items, total := r.list(func(rv *models.Review) bool {
		return rv.TemplateID == templateID && rv.Status == models.ReviewStatusApproved
	}, params)
	return items, total, nil
}

func (r *memoryReviews) ListByReviewer(ctx context.Context, reviewerID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items, total := r.list(func(rv *models.Review) bool { return rv.ReviewerID == reviewerID }, params)
	return items, total, nil
}

func (r *memoryReviews) ListPendingModeration(ctx context.Context, params utils.PaginationParams) ([]models.Review, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items, total := r.list(func(rv *models.Review) bool {
		return rv.Status == models.ReviewStatusPending || rv.Status == models.ReviewStatusFlagged
	}, params)
	return items, total, nil
}

func (r *memoryReviews) TemplateRating(ctx context.Context, templateID uuid.UUID) (models.RatingBreakdown, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var ratings []int
	for _, rv := range r.db.reviews {
		if rv.TemplateID == templateID && rv.Status == models.ReviewStatusApproved {
			ratings = append(ratings, rv.Rating)
		}
	}
	return models.NewRatingBreakdown(ratings), nil
}

func (r *memoryReviews) SellerRating(ctx context.Context, sellerID uuid.UUID) (models.RatingSummary, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var ratings []int
	for _, rv := range r.db.reviews {
		if rv.Status != models.ReviewStatusApproved {
			continue
		}
		if t, ok := r.db.templates[rv.TemplateID]; ok && t.SellerID == sellerID {
			ratings = append(ratings, rv.Rating)
		}
	}
	return models.SummarizeRatings(ratings), nil
}

// Audit

type memoryAudit struct{ db *memoryDB }

func (r *memoryAudit) Record(ctx context.Context, entry *models.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	entry.EnsureID()
	r.db.touch(&entry.BaseModel, true)
	r.db.audit = append(r.db.audit, *entry)
	return nil
}
