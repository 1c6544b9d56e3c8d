package domain

import "time"

// ============================================================
// Admin users & permissions
// ============================================================

// Role is an admin's role in the back office.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager
}

// Permission names a back-office capability.
type Permission string

const (
	PermAwardPoints     Permission = "award_points"
	PermRecordPurchases Permission = "record_purchases"
	PermManageAccounts  Permission = "manage_accounts"
	PermExpirePoints    Permission = "expire_points"
	PermViewDashboard   Permission = "view_dashboard"
	PermViewAccounts    Permission = "view_accounts"
)

// DefaultPermissions returns the permissions a role starts with.
func DefaultPermissions(r Role) []Permission {
	switch r {
	case RoleAdmin:
		return []Permission{
			PermAwardPoints, PermRecordPurchases, PermManageAccounts,
			PermExpirePoints, PermViewDashboard, PermViewAccounts,
		}
	case RoleManager:
		return []Permission{PermViewDashboard, PermViewAccounts}
	}
	return nil
}

// AdminUser is a back-office operator.
type AdminUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	Role         Role         `json:"role"`
	Permissions  []Permission `json:"permissions"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Can reports whether the admin holds p.
func (a *AdminUser) Can(p Permission) bool {
	if a == nil {
		return false
	}
	for _, have := range a.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (a *AdminUser) Clone() *AdminUser {
	if a == nil {
		return nil
	}
	c := *a
	c.Permissions = append([]Permission(nil), a.Permissions...)
	return &c
}
