package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Accounts
// ============================================================

// Account is a customer's loyalty record.
// TotalPoints changes only through ledger entries.
type Account struct {
	ID                    string          `json:"id"`
	Email                 string          `json:"email"`
	FirstName             string          `json:"firstName"`
	LastName              string          `json:"lastName"`
	Phone                 string          `json:"phone,omitempty"`
	PasswordHash          string          `json:"-"`
	JoinedAt              time.Time       `json:"dateJoined"`
	TotalPoints           int64           `json:"totalPoints"`
	TotalPurchases        decimal.Decimal `json:"totalPurchases"`
	CurrentMonthPurchases decimal.Decimal `json:"currentMonthPurchases"`
	PurchasePeriod        string          `json:"-"` // YYYY-MM the monthly total belongs to
	IsActive              bool            `json:"isActive"`
	LastActivityAt        time.Time       `json:"lastActivityAt"`
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Clone returns a deep copy safe to hand out of a store.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// BillingPeriod returns the YYYY-MM key of the billing cycle containing t.
func BillingPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// RollPeriod zeroes the monthly purchase total when now belongs to a newer
// billing cycle than the one last recorded.
func (a *Account) RollPeriod(now time.Time) {
	period := BillingPeriod(now)
	if a.PurchasePeriod != period {
		a.PurchasePeriod = period
		a.CurrentMonthPurchases = decimal.Zero
	}
}

// NormalizeEmail lowercases and trims an email for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Query  string // case-insensitive match on email or name
	Limit  int
	Offset int
}

// AccountStatus is the customer dashboard view: account plus derived level data.
type AccountStatus struct {
	Account      *Account      `json:"account"`
	Level        LoyaltyLevel  `json:"loyaltyLevel"`
	NextLevel    *LoyaltyLevel `json:"nextLevel,omitempty"`
	Progress     float64       `json:"progressToNextLevel"`
	PointsNeeded int64         `json:"pointsNeeded"`
}

// ProfileUpdate carries the editable, non-point fields of an account.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// ============================================================
// Ledger
// ============================================================

// Category classifies the cause of a ledger entry.
type Category string

const (
	CategoryPurchase    Category = "purchase"
	CategoryManualAward Category = "manual_award"
	CategoryBonus       Category = "bonus"
	CategoryRedeemed    Category = "redeemed"
	CategoryExpired     Category = "expired"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPurchase, CategoryManualAward, CategoryBonus, CategoryRedeemed, CategoryExpired:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of one point-balance change.
type LedgerEntry struct {
	ID             string           `json:"id"`
	Seq            int64            `json:"seq"`
	AccountID      string           `json:"accountId"`
	Delta          int64            `json:"points"`
	Category       Category         `json:"type"`
	Reason         string           `json:"description"`
	AuthorizedBy   string           `json:"awardedBy,omitempty"`
	PurchaseAmount *decimal.Decimal `json:"amount,omitempty"`
	OrderNumber    string           `json:"orderNumber,omitempty"`
	CreatedAt      time.Time        `json:"date"`
}

// MaxPurchaseAmount bounds a single purchase. Amounts must stay below it so
// they fit the ledger's numeric(14,2) columns.
var MaxPurchaseAmount = decimal.New(1, 12)

// AddPoints returns balance+delta, refusing results outside [0, MaxInt64].
func AddPoints(balance, delta int64) (int64, error) {
	if delta > 0 && balance > math.MaxInt64-delta {
		return 0, &ErrValidation{Field: "points", Message: "balance would exceed the maximum point total"}
	}
	sum := balance + delta
	if sum < 0 {
		return 0, &ErrValidation{Field: "points", Message: "balance would become negative"}
	}
	return sum, nil
}

// ReplayBalance sums the deltas of entries, the ledger's view of a balance.
func ReplayBalance(entries []LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Delta
	}
	return total
}

// ReplayResult reports a balance verification.
type ReplayResult struct {
	AccountID  string `json:"accountId"`
	Stored     int64  `json:"storedPoints"`
	Replayed   int64  `json:"replayedPoints"`
	Entries    int    `json:"entries"`
	Consistent bool   `json:"consistent"`
}

// ============================================================
// Operations
// ============================================================

// AwardRequest grants points outside purchase accrual.
type AwardRequest struct {
	AccountID    string   `json:"accountId"`
	Amount       int64    `json:"points"`
	Reason       string   `json:"reason"`
	AuthorizedBy string   `json:"-"`
	Category     Category `json:"category,omitempty"`
}

// PurchaseRequest accrues points for money spent.
type PurchaseRequest struct {
	AccountID   string          `json:"-"`
	AmountSpent decimal.Decimal `json:"amount"`
	OrderNumber string          `json:"orderNumber,omitempty"`
}

// RedeemRequest spends accumulated points.
type RedeemRequest struct {
	AccountID string `json:"-"`
	Amount    int64  `json:"points"`
	Reason    string `json:"reason,omitempty"`
}

// MutationResult is returned by every ledger mutation.
type MutationResult struct {
	Entry   *LedgerEntry `json:"entry"`
	Account *Account     `json:"account"`
	Level   LoyaltyLevel `json:"loyaltyLevel"`
}

// LevelChangeEvent is published when a mutation moves an account across a level boundary.
type LevelChangeEvent struct {
	AccountID string       `json:"accountId"`
	Email     string       `json:"email"`
	From      LoyaltyLevel `json:"from"`
	To        LoyaltyLevel `json:"to"`
	Points    int64        `json:"points"`
	EntryID   string       `json:"entryId"`
	At        time.Time    `json:"at"`
}

// Upgrade reports whether the change moved the account up the table.
func (e LevelChangeEvent) Upgrade() bool {
	return e.To.MinPoints > e.From.MinPoints
}

// ExpiryReport summarises one expiration sweep.
type ExpiryReport struct {
	Cutoff        time.Time `json:"cutoff"`
	Scanned       int       `json:"scanned"`
	Expired       int       `json:"expiredAccounts"`
	PointsExpired int64     `json:"pointsExpired"`
}
