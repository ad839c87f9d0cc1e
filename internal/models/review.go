// internal/models/review.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
)

var (
	ErrAlreadyVoted = apperrors.New(apperrors.CodeAlreadyVoted, "You have already voted on this review")
	ErrOwnReview    = apperrors.Forbidden("You cannot vote on your own review")
	ErrInvalidScore = apperrors.Validation(map[string]string{"rating": "Rating must be between 1 and 5"})
)

type Review struct {
	BaseModel
	TemplateID         uuid.UUID       `json:"templateId" gorm:"type:uuid;not null;index:idx_reviews_template_status"`
	ReviewerID         uuid.UUID       `json:"reviewerId" gorm:"type:uuid;not null;index"`
	OrderID            uuid.UUID       `json:"orderId" gorm:"type:uuid;not null;uniqueIndex"`
	Rating             int             `json:"rating" gorm:"not null"`
	Title              string          `json:"title,omitempty" gorm:"size:100"`
	Content            string          `json:"content" gorm:"type:text;not null"`
	Pros               pq.StringArray  `json:"pros" gorm:"type:text[]"`
	Cons               pq.StringArray  `json:"cons" gorm:"type:text[]"`
	HelpfulVotes       HelpfulVotes    `json:"helpfulVotes" gorm:"embedded;embeddedPrefix:helpful_"`
	Status             ReviewStatus    `json:"status" gorm:"type:varchar(20);not null;default:'approved';index:idx_reviews_template_status"`
	ModerationNotes    string          `json:"moderationNotes,omitempty" gorm:"size:500"`
	FlagReasons        []FlagReport    `json:"flagReasons,omitempty" gorm:"type:jsonb;serializer:json"`
	SellerResponse     *SellerResponse `json:"sellerResponse,omitempty" gorm:"type:jsonb;serializer:json"`
	IsEdited           bool            `json:"isEdited" gorm:"not null;default:false"`
	EditHistory        []ReviewEdit    `json:"editHistory,omitempty" gorm:"type:jsonb;serializer:json"`
	IsVerifiedPurchase bool            `json:"isVerifiedPurchase" gorm:"not null;default:true"`
}

type HelpfulVotes struct {
	Helpful    int            `json:"helpful" gorm:"not null;default:0"`
	NotHelpful int            `json:"notHelpful" gorm:"not null;default:0"`
	Voters     pq.StringArray `json:"voters" gorm:"type:text[]"`
}

type FlagReport struct {
	Reason      FlagReason `json:"reason"`
	ReportedBy  uuid.UUID  `json:"reportedBy"`
	ReportedAt  time.Time  `json:"reportedAt"`
	Description string     `json:"description,omitempty"`
}

type SellerResponse struct {
	Content     string     `json:"content"`
	RespondedAt time.Time  `json:"respondedAt"`
	IsEdited    bool       `json:"isEdited"`
	EditedAt    *time.Time `json:"editedAt,omitempty"`
}

type ReviewEdit struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"editedAt"`
	Reason   string    `json:"reason,omitempty"`
}

func ValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

// ApplyDefaults prepares a new review for persistence.
func (r *Review) ApplyDefaults() {
	r.EnsureID()
	if r.Status == "" {
		r.Status = ReviewStatusApproved
	}
}

func (r *Review) HasVoted(userID uuid.UUID) bool {
	id := userID.String()
	for _, v := range r.HelpfulVotes.Voters {
		if v == id {
			return true
		}
	}
	return false
}

// VoteHelpful records one vote per user. A repeated vote fails and leaves the
// counters untouched.
func (r *Review) VoteHelpful(userID uuid.UUID, helpful bool) error {
	if userID == r.ReviewerID {
		return ErrOwnReview
	}
	if r.HasVoted(userID) {
		return ErrAlreadyVoted
	}
	if helpful {
		r.HelpfulVotes.Helpful++
	} else {
		r.HelpfulVotes.NotHelpful++
	}
	r.HelpfulVotes.Voters = append(r.HelpfulVotes.Voters, userID.String())
	return nil
}

// HelpfulnessRatio is the share of helpful votes, or 0 without votes.
func (r *Review) HelpfulnessRatio() float64 {
	total := r.HelpfulVotes.Helpful + r.HelpfulVotes.NotHelpful
	if total == 0 {
		return 0
	}
	return float64(r.HelpfulVotes.Helpful) / float64(total)
}

// Edit archives the current content and replaces it.
func (r *Review) Edit(content string, rating *int, reason string, now time.Time) error {
	if rating != nil && !ValidRating(*rating) {
		return ErrInvalidScore
	}
	r.EditHistory = append(r.EditHistory, ReviewEdit{
		Content:  r.Content,
		EditedAt: now,
		Reason:   reason,
	})
	r.Content = content
	if rating != nil {
		r.Rating = *rating
	}
	r.IsEdited = true
	return nil
}

func (r *Review) Flag(reason FlagReason, reportedBy uuid.UUID, description string, now time.Time) {
	r.FlagReasons = append(r.FlagReasons, FlagReport{
		Reason:      reason,
		ReportedBy:  reportedBy,
		ReportedAt:  now,
		Description: description,
	})
	if r.Status != ReviewStatusFlagged {
		r.Status = ReviewStatusFlagged
	}
}

func (r *Review) HasFlagFrom(userID uuid.UUID) bool {
	for _, f := range r.FlagReasons {
		if f.ReportedBy == userID {
			return true
		}
	}
	return false
}

// AddSellerResponse sets the single seller response, replacing any earlier one.
func (r *Review) AddSellerResponse(content string, now time.Time) {
	resp := &SellerResponse{
		Content:     content,
		RespondedAt: now,
	}
	if r.SellerResponse != nil {
		resp.IsEdited = true
		resp.EditedAt = &now
	}
	r.SellerResponse = resp
}

// Moderate applies an admin decision to the review.
func (r *Review) Moderate(status ReviewStatus, notes string) error {
	if status != ReviewStatusApproved && status != ReviewStatusRejected && status != ReviewStatusPending {
		return apperrors.InvalidState("Unsupported moderation status " + string(status))
	}
	r.Status = status
	if notes != "" {
		r.ModerationNotes = notes
	}
	return nil
}
