package domain

import "time"

// User is the slice of a marketplace account the notification subsystem needs.
type User struct {
	UserID    string    `json:"id" dynamodbav:"user_id"`
	Username  string    `json:"username" dynamodbav:"username"`
	Role      Role      `json:"role" dynamodbav:"role"`
	Locale    string    `json:"locale,omitempty" dynamodbav:"locale"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// DeliveryAssignment links a seller to a delivery agent working for them.
type DeliveryAssignment struct {
	SellerID  string    `json:"seller_id" dynamodbav:"seller_id" validate:"required"`
	AgentID   string    `json:"agent_id" dynamodbav:"agent_id" validate:"required"`
	Active    bool      `json:"active" dynamodbav:"active"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Preference is the global opt-in for one (event kind, role) pair.
type Preference struct {
	EventKind EventKind `json:"event_kind" dynamodbav:"event_kind" validate:"required"`
	Role      Role      `json:"role" dynamodbav:"role" validate:"required"`
	Enabled   bool      `json:"enabled" dynamodbav:"enabled"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}
