package entity

import "time"

type MemberRole string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
)

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipCancelled MembershipStatus = "cancelled"
)

type Member struct {
	Base
	Name             string           `db:"name"`
	Email            string           `db:"email"`
	Phone            *string          `db:"phone"`
	Role             MemberRole       `db:"role"`
	MembershipStatus MembershipStatus `db:"membership_status"`
	// MembershipPaidThrough advances when a recurring payment completes.
	MembershipPaidThrough *time.Time `db:"membership_paid_through"`
	// GatewaySubscriptionID links the member to the provider's
	// recurring-billing subscription, set when the subscription activates.
	GatewaySubscriptionID *string `db:"gateway_subscription_id"`
	IsActive              bool    `db:"is_active"`
}
