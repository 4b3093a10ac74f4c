package domain

import "fmt"

// EventKind identifies the business action a DomainEvent reports.
type EventKind string

const (
	KindPurchase          EventKind = "purchase"
	KindStepActivation    EventKind = "step-activation"
	KindSubStepActivation EventKind = "sub-step-activation"
	KindItemCreated       EventKind = "item-created"
	KindItemUpdated       EventKind = "item-updated"
	KindItemAccepted      EventKind = "item-accepted"
)

// EventKinds lists every kind in a stable order.
var EventKinds = []EventKind{
	KindPurchase, KindStepActivation, KindSubStepActivation,
	KindItemCreated, KindItemUpdated, KindItemAccepted,
}

// SubStep is the variant of a sub-step activation.
type SubStep string

const (
	SubStepCancelled SubStep = "cancelled"
	SubStepRejected  SubStep = "rejected"
	SubStepReturned  SubStep = "returned"
)

// PurchasedItem ties a purchased line item to the seller who owns it.
type PurchasedItem struct {
	SellerKey string `json:"seller_key" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

// DomainEvent is produced by a business action and fanned out to stakeholders.
// It is never persisted.
type DomainEvent struct {
	Kind           EventKind       `json:"kind" validate:"required,oneof=purchase step-activation sub-step-activation item-created item-updated item-accepted"`
	SubStep        SubStep         `json:"sub_step,omitempty" validate:"omitempty,oneof=cancelled rejected returned"`
	ActingUserID   string          `json:"acting_user_id" validate:"required"`
	ActingUserName string          `json:"acting_user_name"`
	BuyerKey       string          `json:"buyer_key,omitempty"`
	SellerKeys     []string        `json:"seller_keys,omitempty"`
	DeliveryKeys   []string        `json:"delivery_keys,omitempty"`
	Items          []PurchasedItem `json:"items,omitempty" validate:"dive"`
	OrderID        string          `json:"order_id,omitempty"`
	StepID         string          `json:"step_id,omitempty"`
	StepName       string          `json:"step_name,omitempty"`
	ItemType       string          `json:"item_type,omitempty"`
	ItemName       string          `json:"item_name,omitempty"`
	UserName       string          `json:"user_name,omitempty"`
	Locale         string          `json:"locale,omitempty"`
}

// Check enforces the rules struct tags cannot express.
func (e DomainEvent) Check() error {
	if e.Kind == KindSubStepActivation && e.SubStep == "" {
		return fmt.Errorf("sub_step is required for %s: %w", e.Kind, ErrBadRequest)
	}
	return nil
}

// Placeholders returns the template interpolation values carried by the event.
func (e DomainEvent) Placeholders() map[string]string {
	userName := e.UserName
	if userName == "" {
		userName = e.ActingUserName
	}
	return map[string]string{
		"orderId":  e.OrderID,
		"stepId":   e.StepID,
		"stepName": e.StepName,
		"subStep":  string(e.SubStep),
		"itemType": e.ItemType,
		"itemName": e.ItemName,
		"userName": userName,
	}
}

// Message is a resolved, interpolated push text.
type Message struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}
