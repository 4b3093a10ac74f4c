package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/pkg/id"
	"github.com/go-market-notify/internal/pkg/validate"
)

type Service interface {
	// Register returns the caller's device for req.UUID with req.Token as its push endpoint,
	// creating it on first sight. A device that changes hands moves to the caller.
	Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error)
	List(ctx context.Context, userID string) ([]domain.Device, error)
	Get(ctx context.Context, userID, deviceID string) (*domain.Device, error)
	Delete(ctx context.Context, userID, deviceID string) error
}

type deviceStore interface {
	Create(ctx context.Context, d *domain.Device) error
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	GetByUUID(ctx context.Context, uuid string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	Update(ctx context.Context, deviceID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, deviceID string) error
}

type service struct {
	repo deviceStore
}

func NewService(repo deviceStore) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByUUID(ctx, req.UUID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		updates := map[string]interface{}{
			"token":    req.Token,
			"platform": req.Platform,
			"enable":   true,
		}
		if existing.UserID != userID {
			updates["user_id"] = userID
		}
		if err := s.repo.Update(ctx, existing.DeviceID, updates); err != nil {
			return nil, fmt.Errorf("update device: %w", err)
		}
		return s.repo.Get(ctx, existing.DeviceID)
	}

	now := time.Now().UTC()
	token := req.Token
	d := &domain.Device{
		DeviceID:  id.New(),
		UUID:      req.UUID,
		UserID:    userID,
		Token:     &token,
		Platform:  req.Platform,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}
	return d, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, deviceID string) (*domain.Device, error) {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("device %s: %w", deviceID, domain.ErrForbidden)
	}
	return d, nil
}

func (s *service) Delete(ctx context.Context, userID, deviceID string) error {
	if _, err := s.Get(ctx, userID, deviceID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, deviceID)
}
