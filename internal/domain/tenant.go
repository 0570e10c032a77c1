package domain

import "time"

// Tenant is an isolated customer account and the unit of data partitioning.
type Tenant struct {
	ID                 int64
	Name               string
	Slug               string
	ContactEmail       string
	BillingCustomerID  string
	BillingProvider    string
	SubscriptionStatus string
	PlanCode           string
	TrialEndsAt        *time.Time
	Status             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Role is a tenant-scoped authorization role.
type Role struct {
	ID       int64
	TenantID int64
	Key      RoleKey
	Name     string
}

// RoleKey identifies a provisioned role within a tenant.
type RoleKey string

const (
	RoleAdmin    RoleKey = "admin"
	RoleManager  RoleKey = "manager"
	RoleEmployee RoleKey = "employee"
	RoleHR       RoleKey = "hr"
	RoleIT       RoleKey = "it"
)

// DefaultRoleNames lists the roles provisioned for every new tenant.
var DefaultRoleNames = map[RoleKey]string{
	RoleAdmin:    "Administrator",
	RoleManager:  "Manager",
	RoleEmployee: "Employee",
	RoleHR:       "Human Resources",
	RoleIT:       "IT",
}
