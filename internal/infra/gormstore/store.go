// Package gormstore persists accounts, the points ledger and admins through
// gorm. It runs on PostgreSQL in production and on SQLite for single-node
// deployments and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

var tracer = otel.Tracer("gormstore")

// Store implements port.Store on top of a gorm connection.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	// lockRows adds SELECT ... FOR UPDATE inside Apply; SQLite serializes
	// writers on its own and does not understand the clause.
	lockRows bool
}

var _ port.Store = (*Store)(nil)

// Open connects to the given driver ("postgres" or "sqlite") and migrates
// the schema.
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		if dsn == "" {
			return nil, errors.New("gormstore: DATABASE_URL is required for postgres")
		}
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "file:loyalty.db?_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("gormstore: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer at a time; avoids SQLITE_BUSY under concurrent Apply
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", err)
	}

	logger.Info("store opened", zap.String("driver", driver))
	return New(db, logger), nil
}

// New wraps an already migrated connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:       db,
		logger:   logger,
		lockRows: db.Dialector.Name() == "postgres",
	}
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================
// Accounts
// ============================================================

func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account, opening []domain.LedgerEntry) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "GormStore.CreateAccount")
	defer span.End()

	if sum := domain.ReplayBalance(opening); sum != acc.TotalPoints {
		return nil, &domain.ErrLedgerMismatch{AccountID: acc.ID, Stored: acc.TotalPoints, Replayed: sum}
	}

	row := accountFromDomain(acc)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&accountRow{}).Where("email = ? OR id = ?", row.Email, row.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &domain.ErrConflict{Message: fmt.Sprintf("email already registered: %s", row.Email)}
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for i := range opening {
			e := opening[i]
			e.AccountID = row.ID
			er := ledgerFromDomain(&e)
			if err := tx.Create(&er).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "GormStore.GetAccount")
	defer span.End()

	var row accountRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", accountID).Error; err != nil {
		return nil, notFound(err, "account", accountID)
	}
	return row.toDomain(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "GormStore.GetAccountByEmail")
	defer span.End()

	var row accountRow
	if err := s.db.WithContext(ctx).First(&row, "email = ?", domain.NormalizeEmail(email)).Error; err != nil {
		return nil, notFound(err, "account", email)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "GormStore.ListAccounts")
	defer span.End()

	q := s.db.WithContext(ctx).Model(&accountRow{})
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("email LIKE ? OR LOWER(first_name || ' ' || last_name) LIKE ? OR id = ?", like, like, term)
	}
	q = q.Order("last_activity_at DESC").Order("id ASC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []accountRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]domain.Account, len(rows))
	for i, r := range rows {
		out[i] = *r.toDomain()
	}
	return out, nil
}

func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&accountRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return int(n), nil
}

func (s *Store) UpdateAccount(ctx context.Context, accountID string, mutate func(acc *domain.Account) error) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "GormStore.UpdateAccount")
	defer span.End()

	var updated *domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.loadForUpdate(tx, accountID)
		if err != nil {
			return err
		}
		acc := row.toDomain()
		if err := mutate(acc); err != nil {
			return err
		}
		if acc.TotalPoints != row.TotalPoints {
			return fmt.Errorf("update account %s: points may only change through the ledger", accountID)
		}
		if acc.ID != row.ID || domain.NormalizeEmail(acc.Email) != row.Email {
			return fmt.Errorf("update account %s: identity fields are immutable", accountID)
		}
		next := accountFromDomain(acc)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		updated = next.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ============================================================
// Ledger
// ============================================================

func (s *Store) Apply(ctx context.Context, accountID string, mutate port.MutateFunc) (*domain.Account, *domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "GormStore.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var (
		updated *domain.Account
		stored  domain.LedgerEntry
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.loadForUpdate(tx, accountID)
		if err != nil {
			return err
		}

		acc := row.toDomain()
		entry, err := mutate(acc)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("apply %s: mutation produced no ledger entry", accountID)
		}
		entry.AccountID = accountID

		var sum int64
		if err := tx.Model(&ledgerRow{}).
			Where("account_id = ?", accountID).
			Select("COALESCE(SUM(delta), 0)").
			Scan(&sum).Error; err != nil {
			return fmt.Errorf("replay ledger: %w", err)
		}
		if replayed := sum + entry.Delta; replayed != acc.TotalPoints {
			s.logger.Error("ledger mismatch, aborting mutation",
				zap.String("account_id", accountID),
				zap.Int64("stored", acc.TotalPoints),
				zap.Int64("replayed", replayed),
			)
			return &domain.ErrLedgerMismatch{AccountID: accountID, Stored: acc.TotalPoints, Replayed: replayed}
		}

		er := ledgerFromDomain(entry)
		if err := tx.Create(&er).Error; err != nil {
			return fmt.Errorf("append entry: %w", err)
		}
		next := accountFromDomain(acc)
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("save account: %w", err)
		}

		updated = next.toDomain()
		stored = er.toDomain()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, &stored, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "GormStore.ListEntries")
	defer span.End()

	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	var rows []ledgerRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entriesToDomain(rows), nil
}

func (s *Store) ListEntriesSince(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "GormStore.ListEntriesSince")
	defer span.End()

	q := s.db.WithContext(ctx).Order("seq ASC")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	var rows []ledgerRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries since: %w", err)
	}
	return entriesToDomain(rows), nil
}

// ============================================================
// Admins
// ============================================================

func (s *Store) CreateAdmin(ctx context.Context, admin *domain.AdminUser) (*domain.AdminUser, error) {
	ctx, span := tracer.Start(ctx, "GormStore.CreateAdmin")
	defer span.End()

	row := adminFromDomain(admin)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&adminRow{}).Where("email = ?", row.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &domain.ErrConflict{Message: fmt.Sprintf("admin already exists: %s", row.Email)}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetAdmin(ctx context.Context, adminID string) (*domain.AdminUser, error) {
	var row adminRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", adminID).Error; err != nil {
		return nil, notFound(err, "admin", adminID)
	}
	return row.toDomain(), nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	var row adminRow
	if err := s.db.WithContext(ctx).First(&row, "email = ?", domain.NormalizeEmail(email)).Error; err != nil {
		return nil, notFound(err, "admin", email)
	}
	return row.toDomain(), nil
}

// ============================================================
// Helpers
// ============================================================

func (s *Store) loadForUpdate(tx *gorm.DB, accountID string) (accountRow, error) {
	q := tx
	if s.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row accountRow
	if err := q.First(&row, "id = ?", accountID).Error; err != nil {
		return accountRow{}, notFound(err, "account", accountID)
	}
	return row, nil
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", resource, id, err)
}

func entriesToDomain(rows []ledgerRow) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
