package domain

import "time"

// RegisterDeviceRequest registers or refreshes the push endpoint of the caller's device.
type RegisterDeviceRequest struct {
	UUID     string `json:"uuid" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

// Device is a push-capable client. Token holds the platform endpoint ARN.
type Device struct {
	DeviceID  string    `json:"id" dynamodbav:"device_id"`
	UUID      string    `json:"uuid" dynamodbav:"device_uuid"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Token     *string   `json:"token" dynamodbav:"token"`
	Platform  string    `json:"platform" dynamodbav:"platform"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Deliverable reports whether the device can receive pushes.
func (d Device) Deliverable() bool {
	return d.Enable && d.Token != nil && *d.Token != ""
}
