package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats is the admin dashboard rollup.
type DashboardStats struct {
	TotalUsers         int             `json:"totalUsers"`
	ActiveUsers        int             `json:"activeUsers"`
	TotalPointsAwarded int64           `json:"totalPointsAwarded"`
	TotalPurchases     decimal.Decimal `json:"totalPurchases"`
	PurchaseCount      int             `json:"purchaseCount"`
	AverageOrderValue  decimal.Decimal `json:"averageOrderValue"`
	MonthlyGrowth      float64         `json:"monthlyGrowth"`
	Period             string          `json:"period"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// RecentUser is a row of the admin "recent users" list.
type RecentUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Points       int64     `json:"points"`
	Level        string    `json:"level"`
	IsActive     bool      `json:"isActive"`
	LastActivity time.Time `json:"lastActivity"`
}
