package validate

import (
	"testing"

	"github.com/go-market-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_DomainEvent(t *testing.T) {
	ok := domain.DomainEvent{Kind: domain.KindPurchase, ActingUserID: "u1"}
	assert.NoError(t, Struct(ok))

	err := Struct(domain.DomainEvent{Kind: "refund"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), "kind")
	assert.Contains(t, err.Error(), "acting_user_id")
}

func TestStruct_DivesIntoItems(t *testing.T) {
	ev := domain.DomainEvent{
		Kind:         domain.KindPurchase,
		ActingUserID: "u1",
		Items:        []domain.PurchasedItem{{SellerKey: "s1"}},
	}
	err := Struct(ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestStruct_SubStepMustBeKnown(t *testing.T) {
	ev := domain.DomainEvent{Kind: domain.KindSubStepActivation, SubStep: "lost", ActingUserID: "u1"}
	assert.ErrorIs(t, Struct(ev), domain.ErrBadRequest)
}
