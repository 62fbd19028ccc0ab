package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

func newOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("", "clay@example.com", "Clay Fan", 4400, []domain.Item{
		{ProductID: "prod_mug", Quantity: 2, UnitPriceCents: 2200},
	})
	require.NoError(t, err)
	return order
}

func TestCreate_AssignsID(t *testing.T) {
	repo := NewRepository()
	created, err := repo.Create(context.Background(), newOrder(t))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, domain.StatusPending, got.Status)
}

func TestGetByID_Unknown(t *testing.T) {
	repo := NewRepository()
	_, err := repo.GetByID(context.Background(), "ord_ghost")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCompareAndSetStatus_WrongFromLosesQuietly(t *testing.T) {
	repo := NewRepository()
	created, err := repo.Create(context.Background(), newOrder(t))
	require.NoError(t, err)

	applied, err := repo.CompareAndSetStatus(context.Background(), created.ID, domain.StatusPaid, domain.StatusShipped)
	require.NoError(t, err)
	require.False(t, applied)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Status)
}

func TestCompareAndSetStatus_ExactlyOneConcurrentWinner(t *testing.T) {
	repo := NewRepository()
	created, err := repo.Create(context.Background(), newOrder(t))
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := repo.CompareAndSetStatus(context.Background(), created.ID, domain.StatusPending, domain.StatusPaid)
			if err == nil && applied {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestClaimPaymentReference_FirstWriteWins(t *testing.T) {
	repo := NewRepository()
	created, err := repo.Create(context.Background(), newOrder(t))
	require.NoError(t, err)

	require.NoError(t, repo.ClaimPaymentReference(context.Background(), created.ID, "pi_first"))
	require.NoError(t, repo.ClaimPaymentReference(context.Background(), created.ID, "pi_first"), "re-claiming the same reference is a no-op")

	err = repo.ClaimPaymentReference(context.Background(), created.ID, "pi_other")
	require.ErrorIs(t, err, ports.ErrPaymentReferenceConflict)

	got, err := repo.GetByPaymentReference(context.Background(), "pi_first")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestSetTracking_EnablesShipmentLookup(t *testing.T) {
	repo := NewRepository()
	created, err := repo.Create(context.Background(), newOrder(t))
	require.NoError(t, err)

	require.NoError(t, repo.SetTracking(context.Background(), created.ID, "EZ1000000001", "EZ1000000001"))

	got, err := repo.GetByShipmentReference(context.Background(), "EZ1000000001")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "EZ1000000001", got.TrackingNumber)
}

func TestGetByShipmentReference_Unknown(t *testing.T) {
	repo := NewRepository()
	_, err := repo.GetByShipmentReference(context.Background(), "EZ0")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestReturnedOrdersAreClones(t *testing.T) {
	repo := NewRepository()
	created, err := repo.Create(context.Background(), newOrder(t))
	require.NoError(t, err)

	created.Status = domain.StatusDelivered
	created.Items[0].Quantity = 99

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Equal(t, int32(2), got.Items[0].Quantity)
}
