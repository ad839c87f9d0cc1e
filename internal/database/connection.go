// internal/database/connection.go
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/models"
)

// Conn is a lazily opened database handle. The first call to DB opens the
// pool; a failed open is not cached, so the next call tries again.
type Conn struct {
	cfg config.DatabaseConfig

	mu sync.Mutex
	db *gorm.DB
}

func NewConn(cfg config.DatabaseConfig) *Conn {
	return &Conn{cfg: cfg}
}

// DSN returns the connection string with the per-statement timeout applied.
func (c *Conn) DSN() string {
	dsn := c.cfg.DSN()
	if c.cfg.StatementTimeout > 0 {
		dsn += fmt.Sprintf(" statement_timeout=%d", c.cfg.StatementTimeout*1000)
	}
	return dsn
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// DB returns the shared pool, opening it on first use.
func (c *Conn) DB(ctx context.Context) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.WithContext(ctx), nil
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(c.cfg.LogLevel)),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(c.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(c.cfg.MaxLifetime) * time.Second)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":     c.cfg.Host,
		"database": c.cfg.Database,
	}).Info("Database connection established successfully")

	c.db = db
	return db.WithContext(ctx), nil
}

func (c *Conn) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil
	if err := sqlDB.Close(); err != nil {
		return err
	}
	logrus.Info("Database connection closed successfully")
	return nil
}

func RunMigrations(ctx context.Context, conn *Conn) error {
	db, err := conn.DB(ctx)
	if err != nil {
		return err
	}

	logrus.Info("Running database migrations...")

	// gen_random_uuid() is built in from PostgreSQL 13; pgcrypto covers older servers.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Template{},
		&models.Order{},
		&models.Review{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	createIndexes(db)

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) {
	for _, index := range indexStatements() {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}
}

func indexStatements() []string {
	return []string{
		// Templates
		"CREATE INDEX IF NOT EXISTS idx_templates_category_status ON templates(category, status)",
		"CREATE INDEX IF NOT EXISTS idx_templates_pricing ON templates(pricing_type, pricing_price)",
		"CREATE INDEX IF NOT EXISTS idx_templates_popular ON templates(stats_sales DESC, stats_rating_average DESC)",
		"CREATE INDEX IF NOT EXISTS idx_templates_featured ON templates(featured_until) WHERE featured_until IS NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_templates_tags ON templates USING GIN(tags)",

		// Orders
		"CREATE INDEX IF NOT EXISTS idx_orders_buyer_created ON orders(buyer_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_seller_created ON orders(seller_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_pending_expiry ON orders(expires_at) WHERE status = 'pending'",

		// Reviews
		"CREATE INDEX IF NOT EXISTS idx_reviews_reviewer_created ON reviews(reviewer_id, created_at DESC)",

		// Audit
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",

		// Full-text search
		templateTagsTextFunc,
		"DROP INDEX IF EXISTS idx_templates_search",
		"CREATE INDEX IF NOT EXISTS idx_templates_fulltext ON templates USING GIN(" + TemplateSearchVector + ")",
	}
}

// array_to_string is only STABLE, and index expressions need IMMUTABLE
// functions.
const templateTagsTextFunc = `CREATE OR REPLACE FUNCTION template_tags_text(text[]) RETURNS text
	LANGUAGE sql IMMUTABLE AS $$ SELECT coalesce(array_to_string($1, ' '), '') $$`

// TemplateSearchVector is the text-search expression shared by the search
// index and template queries. It covers title, description and tags.
const TemplateSearchVector = "to_tsvector('english', coalesce(title, '') || ' ' || coalesce(description, '') || ' ' || template_tags_text(tags))"

func WithTransaction(ctx context.Context, conn *Conn, fn func(*gorm.DB) error) error {
	db, err := conn.DB(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(fn)
}
