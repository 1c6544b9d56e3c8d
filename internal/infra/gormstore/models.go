package gormstore

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
)

// accountRow mirrors the loyalty_accounts table.
type accountRow struct {
	ID                    string          `gorm:"type:varchar(36);primaryKey"`
	Email                 string          `gorm:"type:varchar(320);not null;uniqueIndex"`
	FirstName             string          `gorm:"type:varchar(120);not null"`
	LastName              string          `gorm:"type:varchar(120);not null"`
	Phone                 string          `gorm:"type:varchar(40)"`
	PasswordHash          string          `gorm:"type:varchar(100)"`
	JoinedAt              time.Time       `gorm:"not null"`
	TotalPoints           int64           `gorm:"not null;default:0"`
	TotalPurchases        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CurrentMonthPurchases decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PurchasePeriod        string          `gorm:"type:varchar(7)"`
	IsActive              bool            `gorm:"not null"`
	LastActivityAt        time.Time       `gorm:"not null;index"`
}

func (accountRow) TableName() string { return "loyalty_accounts" }

// ledgerRow mirrors the loyalty_ledger table. Seq gives entries a total order.
type ledgerRow struct {
	Seq            int64               `gorm:"primaryKey;autoIncrement"`
	ID             string              `gorm:"type:varchar(36);not null;uniqueIndex"`
	AccountID      string              `gorm:"type:varchar(36);not null;index:idx_ledger_account_seq,priority:1"`
	Delta          int64               `gorm:"not null"`
	Category       string              `gorm:"type:varchar(20);not null"`
	Reason         string              `gorm:"type:text;not null"`
	AuthorizedBy   string              `gorm:"type:varchar(36)"`
	PurchaseAmount decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	OrderNumber    string              `gorm:"type:varchar(32)"`
	CreatedAt      time.Time           `gorm:"not null;index"`
}

func (ledgerRow) TableName() string { return "loyalty_ledger" }

// adminRow mirrors the loyalty_admins table.
type adminRow struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Email        string    `gorm:"type:varchar(320);not null;uniqueIndex"`
	Name         string    `gorm:"type:varchar(120);not null"`
	Role         string    `gorm:"type:varchar(20);not null"`
	Permissions  string    `gorm:"type:text;not null"` // comma separated
	PasswordHash string    `gorm:"type:varchar(100)"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (adminRow) TableName() string { return "loyalty_admins" }

// AutoMigrate creates or updates the tables backing the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&accountRow{}, &ledgerRow{}, &adminRow{})
}

// ============================================================
// Mapping
// ============================================================

func accountFromDomain(a *domain.Account) accountRow {
	return accountRow{
		ID:                    a.ID,
		Email:                 domain.NormalizeEmail(a.Email),
		FirstName:             a.FirstName,
		LastName:              a.LastName,
		Phone:                 a.Phone,
		PasswordHash:          a.PasswordHash,
		JoinedAt:              a.JoinedAt.UTC(),
		TotalPoints:           a.TotalPoints,
		TotalPurchases:        a.TotalPurchases,
		CurrentMonthPurchases: a.CurrentMonthPurchases,
		PurchasePeriod:        a.PurchasePeriod,
		IsActive:              a.IsActive,
		LastActivityAt:        a.LastActivityAt.UTC(),
	}
}

func (r accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:                    r.ID,
		Email:                 r.Email,
		FirstName:             r.FirstName,
		LastName:              r.LastName,
		Phone:                 r.Phone,
		PasswordHash:          r.PasswordHash,
		JoinedAt:              r.JoinedAt.UTC(),
		TotalPoints:           r.TotalPoints,
		TotalPurchases:        r.TotalPurchases,
		CurrentMonthPurchases: r.CurrentMonthPurchases,
		PurchasePeriod:        r.PurchasePeriod,
		IsActive:              r.IsActive,
		LastActivityAt:        r.LastActivityAt.UTC(),
	}
}

func ledgerFromDomain(e *domain.LedgerEntry) ledgerRow {
	row := ledgerRow{
		ID:           e.ID,
		AccountID:    e.AccountID,
		Delta:        e.Delta,
		Category:     string(e.Category),
		Reason:       e.Reason,
		AuthorizedBy: e.AuthorizedBy,
		OrderNumber:  e.OrderNumber,
		CreatedAt:    e.CreatedAt.UTC(),
	}
	if e.PurchaseAmount != nil {
		row.PurchaseAmount = decimal.NewNullDecimal(*e.PurchaseAmount)
	}
	return row
}

func (r ledgerRow) toDomain() domain.LedgerEntry {
	e := domain.LedgerEntry{
		ID:           r.ID,
		Seq:          r.Seq,
		AccountID:    r.AccountID,
		Delta:        r.Delta,
		Category:     domain.Category(r.Category),
		Reason:       r.Reason,
		AuthorizedBy: r.AuthorizedBy,
		OrderNumber:  r.OrderNumber,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.PurchaseAmount.Valid {
		amt := r.PurchaseAmount.Decimal
		e.PurchaseAmount = &amt
	}
	return e
}

func adminFromDomain(a *domain.AdminUser) adminRow {
	perms := make([]string, len(a.Permissions))
	for i, p := range a.Permissions {
		perms[i] = string(p)
	}
	return adminRow{
		ID:           a.ID,
		Email:        domain.NormalizeEmail(a.Email),
		Name:         a.Name,
		Role:         string(a.Role),
		Permissions:  strings.Join(perms, ","),
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt.UTC(),
	}
}

func (r adminRow) toDomain() *domain.AdminUser {
	var perms []domain.Permission
	for _, p := range strings.Split(r.Permissions, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, domain.Permission(p))
		}
	}
	return &domain.AdminUser{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		Role:         domain.Role(r.Role),
		Permissions:  perms,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}
