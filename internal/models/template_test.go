package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "next-js-saas-starter", Slugify("Next.js SaaS Starter!"))
	assert.Equal(t, "admin-dashboard-2", Slugify("  Admin   Dashboard 2 "))
	assert.True(t, ValidSlug(Slugify("Tailwind UI Kit")))
	assert.False(t, ValidSlug("Bad Slug"))
}

func TestEffectivePriceHonorsDiscountWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)
	tpl := &Template{Pricing: TemplatePricing{
		Type:  PricingPaid,
		Price: decimal.RequireFromString("80"),
		Discount: &PriceDiscount{
			Percentage: decimal.NewFromInt(25),
			StartDate:  &start,
			EndDate:    &end,
		},
	}}

	assert.True(t, tpl.EffectivePrice(now).Equal(decimal.RequireFromString("60")))
	assert.True(t, tpl.EffectivePrice(end.Add(time.Second)).Equal(decimal.RequireFromString("80")))
	assert.True(t, tpl.EffectivePrice(start.Add(-time.Second)).Equal(decimal.RequireFromString("80")))

	tpl.Pricing.Type = PricingFree
	assert.True(t, tpl.EffectivePrice(now).IsZero())
}

func TestApplyDefaults(t *testing.T) {
	now := time.Now()
	tpl := &Template{}
	tpl.ApplyDefaults(now)

	assert.Equal(t, TemplateStatusDraft, tpl.Status)
	assert.Equal(t, PricingPaid, tpl.Pricing.Type)
	assert.Equal(t, CurrencyUSD, tpl.Pricing.Currency)
	assert.Equal(t, "MIT", tpl.Files.License)
	assert.Equal(t, "1.0.0", tpl.Metadata.Version)
}

func TestPublishedAtSetOnce(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)
	tpl := &Template{Status: TemplateStatusDraft}

	require.NoError(t, tpl.TransitionTo(TemplateStatusPending, "", first))
	assert.Nil(t, tpl.PublishedAt)

	require.NoError(t, tpl.TransitionTo(TemplateStatusApproved, "ok", first))
	require.NotNil(t, tpl.PublishedAt)
	assert.Equal(t, first, *tpl.PublishedAt)

	require.NoError(t, tpl.TransitionTo(TemplateStatusSuspended, "dmca", later))
	require.NoError(t, tpl.TransitionTo(TemplateStatusApproved, "", later))
	assert.Equal(t, first, *tpl.PublishedAt)
}

func TestTransitionRejectsInvalidMoves(t *testing.T) {
	tpl := &Template{Status: TemplateStatusDraft}
	assert.Error(t, tpl.TransitionTo(TemplateStatusApproved, "", time.Now()))
	assert.Equal(t, TemplateStatusDraft, tpl.Status)
}

func TestStatColumn(t *testing.T) {
	assert.Equal(t, "stats_downloads", StatDownloads.Column())
}
