package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/go-market-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUsers struct{ mock.Mock }

func (m *mockUsers) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]domain.User), args.Error(1)
}

type mockDevices struct{ mock.Mock }

func (m *mockDevices) DeliverableTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]string), args.Error(1)
}

type mockAssignments struct{ mock.Mock }

func (m *mockAssignments) ListActive(ctx context.Context, sellerID string) ([]domain.DeliveryAssignment, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).([]domain.DeliveryAssignment), args.Error(1)
}

// --- tests ---

func TestAdminTokens_ExcludesActingAdmin(t *testing.T) {
	users := new(mockUsers)
	devices := new(mockDevices)
	users.On("ListByRole", mock.Anything, domain.RoleAdmin).
		Return([]domain.User{{UserID: "a1"}, {UserID: "a2"}}, nil)
	devices.On("DeliverableTokens", mock.Anything, "a2").Return([]string{"t-a2"}, nil)

	svc := NewService(users, devices, new(mockAssignments))
	tokens, err := svc.AdminTokens(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-a2"}, tokens)
	devices.AssertNotCalled(t, "DeliverableTokens", mock.Anything, "a1")
}

func TestUserTokens_DedupesAcrossUsers(t *testing.T) {
	devices := new(mockDevices)
	devices.On("DeliverableTokens", mock.Anything, "u1").Return([]string{"t1", ""}, nil)
	devices.On("DeliverableTokens", mock.Anything, "u2").Return([]string{"t1", "t2"}, nil)

	svc := NewService(new(mockUsers), devices, new(mockAssignments))
	tokens, err := svc.UserTokens(context.Background(), []string{"u1", "u2", "u1", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, tokens)
	devices.AssertNumberOfCalls(t, "DeliverableTokens", 2)
}

func TestUserTokens_PropagatesErrors(t *testing.T) {
	devices := new(mockDevices)
	devices.On("DeliverableTokens", mock.Anything, "u1").Return([]string(nil), errors.New("boom"))

	svc := NewService(new(mockUsers), devices, new(mockAssignments))
	_, err := svc.UserTokens(context.Background(), []string{"u1"})
	assert.ErrorContains(t, err, "boom")
}

func TestActiveDeliveryAgents(t *testing.T) {
	assignments := new(mockAssignments)
	assignments.On("ListActive", mock.Anything, "s1").Return([]domain.DeliveryAssignment{
		{SellerID: "s1", AgentID: "d1", Active: true},
		{SellerID: "s1", AgentID: "d2", Active: true},
		{SellerID: "s1", AgentID: "d1", Active: true},
	}, nil)

	svc := NewService(new(mockUsers), new(mockDevices), assignments)
	agents, err := svc.ActiveDeliveryAgents(context.Background(), "s1", "d2")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, agents)
}
