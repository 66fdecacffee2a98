package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID        int64
	Email     string
	Role      Role
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the identity attached to a request by the auth layer.
// Identity verification itself lives outside this service.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin
}

// CanCancel reports whether the actor may cancel the given order.
// Staff can cancel any order, everyone else only their own.
func (a Actor) CanCancel(order *Order) bool {
	return a.IsStaff() || a.UserID == order.UserID
}
