package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tutorflow-service/internal/models"
	"tutorflow-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLifecycleStore keeps occurrences and the invoice-item graph in memory.
// items maps invoice id to referenced occurrence ids.
type fakeLifecycleStore struct {
	occurrences map[string]*models.Occurrence
	invoices    map[string]*models.Invoice
	items       map[string][]string
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{
		occurrences: map[string]*models.Occurrence{},
		invoices:    map[string]*models.Invoice{},
		items:       map[string][]string{},
	}
}

func (f *fakeLifecycleStore) GetOccurrence(_ context.Context, id string) (*models.Occurrence, error) {
	occ, ok := f.occurrences[id]
	if !ok {
		return nil, fmt.Errorf("fake: %w", response.ErrNotFound)
	}
	copied := *occ
	return &copied, nil
}

func (f *fakeLifecycleStore) ListOccurrencesByStatusThrough(_ context.Context, status models.OccurrenceStatus, lastDate time.Time) ([]models.Occurrence, error) {
	var out []models.Occurrence
	for _, occ := range f.occurrences {
		if occ.Status == status && !occ.Date.After(lastDate) {
			out = append(out, *occ)
		}
	}
	return out, nil
}

func (f *fakeLifecycleStore) UpdateOccurrenceStatus(_ context.Context, id string, status models.OccurrenceStatus) error {
	occ, ok := f.occurrences[id]
	if !ok {
		return fmt.Errorf("fake: %w", response.ErrNotFound)
	}
	occ.Status = status
	return nil
}

func (f *fakeLifecycleStore) ListItemOccurrenceIDs(_ context.Context, invoiceID string) ([]string, error) {
	return f.items[invoiceID], nil
}

func (f *fakeLifecycleStore) ListInvoicesReferencing(_ context.Context, occurrenceID string) ([]models.Invoice, error) {
	var out []models.Invoice
	for invID, ids := range f.items {
		for _, id := range ids {
			if id == occurrenceID {
				out = append(out, *f.invoices[invID])
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLifecycleStore) addOccurrence(id string, d time.Time, status models.OccurrenceStatus) {
	f.occurrences[id] = &models.Occurrence{
		ID:              id,
		ContractID:      "c1",
		Date:            d,
		StartTime:       time.Date(0, time.January, 1, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          status,
	}
}

func (f *fakeLifecycleStore) addInvoice(id string, status models.InvoiceStatus, occurrenceIDs ...string) {
	f.invoices[id] = &models.Invoice{ID: id, ContractID: "c1", Status: status}
	f.items[id] = occurrenceIDs
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMarkElapsedTaught(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("past", day(2025, time.March, 3), models.StatusPlanned)
	store.addOccurrence("future", day(2025, time.March, 20), models.StatusPlanned)
	store.addOccurrence("cancelled", day(2025, time.March, 3), models.StatusCancelled)
	store.addOccurrence("already_paid", day(2025, time.March, 3), models.StatusPaid)

	sync := NewSynchronizer(store)

	count, err := sync.MarkElapsedTaught(context.Background(), day(2025, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, models.StatusTaught, store.occurrences["past"].Status)
	assert.Equal(t, models.StatusPlanned, store.occurrences["future"].Status)
	assert.Equal(t, models.StatusCancelled, store.occurrences["cancelled"].Status)
	assert.Equal(t, models.StatusPaid, store.occurrences["already_paid"].Status)
}

func TestMarkElapsedTaught_BoundaryExactness(t *testing.T) {
	store := newFakeLifecycleStore()
	// lesson 14:00-15:00 on March 10, no travel: block ends exactly 15:00
	store.addOccurrence("edge", day(2025, time.March, 10), models.StatusPlanned)

	sync := NewSynchronizer(store)

	// one minute before the block end: stays planned
	count, err := sync.MarkElapsedTaught(context.Background(), time.Date(2025, time.March, 10, 14, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, models.StatusPlanned, store.occurrences["edge"].Status)

	// exactly at the block end: flips
	count, err = sync.MarkElapsedTaught(context.Background(), time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, models.StatusTaught, store.occurrences["edge"].Status)
}

func TestMarkElapsedTaught_Idempotent(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("past", day(2025, time.March, 3), models.StatusPlanned)

	sync := NewSynchronizer(store)
	asOf := day(2025, time.March, 10)

	count, err := sync.MarkElapsedTaught(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = sync.MarkElapsedTaught(context.Background(), asOf)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOnInvoiceCreated_MarksReferencedPaid(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("o1", day(2025, time.March, 3), models.StatusTaught)
	store.addOccurrence("o2", day(2025, time.March, 5), models.StatusTaught)
	store.addInvoice("inv1", models.InvoiceDraft, "o1", "o2")

	sync := NewSynchronizer(store)

	err := sync.OnInvoiceCreated(context.Background(), "inv1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, store.occurrences["o1"].Status)
	assert.Equal(t, models.StatusPaid, store.occurrences["o2"].Status)
}

func TestOnInvoiceCreated_MissingOccurrenceIsInconsistent(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addInvoice("inv1", models.InvoiceDraft, "gone")

	sync := NewSynchronizer(store)

	err := sync.OnInvoiceCreated(context.Background(), "inv1")
	assert.ErrorIs(t, err, response.ErrInconsistentState)
}

func TestOnInvoicePaid_SharedOccurrenceWaitsForAllInvoices(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("shared", day(2025, time.March, 3), models.StatusTaught)
	store.addInvoice("a", models.InvoicePaid, "shared")
	store.addInvoice("b", models.InvoiceDraft, "shared")

	sync := NewSynchronizer(store)

	// invoice A is paid but B still references the occurrence unpaid
	err := sync.OnInvoicePaid(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTaught, store.occurrences["shared"].Status)

	// once B settles too, the occurrence becomes paid
	store.invoices["b"].Status = models.InvoicePaid
	err = sync.OnInvoicePaid(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, store.occurrences["shared"].Status)
}

func TestOnInvoiceReverted_OtherPaidInvoiceKeepsCoverage(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("covered", day(2025, time.March, 3), models.StatusPaid)
	store.addOccurrence("uncovered", day(2025, time.March, 5), models.StatusPaid)
	// invoice A (being reverted) references both; invoice B still covers one
	store.addInvoice("a", models.InvoiceSent, "covered", "uncovered")
	store.addInvoice("b", models.InvoicePaid, "covered")

	sync := NewSynchronizer(store)

	count, err := sync.OnInvoiceReverted(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, models.StatusPaid, store.occurrences["covered"].Status)
	assert.Equal(t, models.StatusTaught, store.occurrences["uncovered"].Status)
}

func TestOnInvoiceDeleted_RevertsOnlyUncovered(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("x", day(2025, time.March, 3), models.StatusPaid)
	store.addOccurrence("y", day(2025, time.March, 5), models.StatusPaid)
	store.addOccurrence("z", day(2025, time.March, 7), models.StatusPaid)
	// the deleted invoice referenced x, y, z; another paid invoice covers z
	store.addInvoice("other", models.InvoicePaid, "z")

	sync := NewSynchronizer(store)

	count, err := sync.OnInvoiceDeleted(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, models.StatusTaught, store.occurrences["x"].Status)
	assert.Equal(t, models.StatusTaught, store.occurrences["y"].Status)
	assert.Equal(t, models.StatusPaid, store.occurrences["z"].Status)
}

func TestOnInvoiceDeleted_SkipsNonPaid(t *testing.T) {
	store := newFakeLifecycleStore()
	store.addOccurrence("cancelled", day(2025, time.March, 3), models.StatusCancelled)
	store.addOccurrence("taught", day(2025, time.March, 5), models.StatusTaught)

	sync := NewSynchronizer(store)

	count, err := sync.OnInvoiceDeleted(context.Background(), []string{"cancelled", "taught"})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, models.StatusCancelled, store.occurrences["cancelled"].Status)
	assert.Equal(t, models.StatusTaught, store.occurrences["taught"].Status)
}
