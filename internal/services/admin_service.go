// internal/services/admin_service.go
package services

import (
	"context"

	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// AdminService gathers the counters shown on the admin dashboard.
type AdminService struct {
	store *repository.Store
}

type AdminDashboardStats struct {
	Buyers            int64 `json:"buyers"`
	Sellers           int64 `json:"sellers"`
	Admins            int64 `json:"admins"`
	PendingTemplates  int64 `json:"pendingTemplates"`
	ApprovedTemplates int64 `json:"approvedTemplates"`
	PendingReviews    int64 `json:"pendingReviews"`
}

func NewAdminService(store *repository.Store) *AdminService {
	return &AdminService{store: store}
}

func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}

	roles := map[models.UserRole]*int64{
		models.UserRoleBuyer:  &stats.Buyers,
		models.UserRoleSeller: &stats.Sellers,
		models.UserRoleAdmin:  &stats.Admins,
	}
	for role, dst := range roles {
		n, err := s.store.Users.CountByRole(ctx, role)
		if err != nil {
			return nil, repoError(err, "User")
		}
		*dst = n
	}

	// Only the totals are needed, so fetch a single row per query.
	one := utils.NormalizePagination(utils.PaginationParams{Limit: 1})
	for status, dst := range map[models.TemplateStatus]*int64{
		models.TemplateStatusPending:  &stats.PendingTemplates,
		models.TemplateStatusApproved: &stats.ApprovedTemplates,
	} {
		_, total, err := s.store.Templates.Search(ctx, repository.TemplateQuery{PaginationParams: one, Status: status})
		if err != nil {
			return nil, repoError(err, "Template")
		}
		*dst = total
	}

	_, pending, err := s.store.Reviews.ListPendingModeration(ctx, one)
	if err != nil {
		return nil, repoError(err, "Review")
	}
	stats.PendingReviews = pending

	return stats, nil
}
