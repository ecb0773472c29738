package engine

import (
	"math/rand"
	"testing"

	"site-procurement-api-server/internal/models"
)

func itemsWithStatuses(statuses ...models.ItemStatus) []models.RequestItem {
	items := make([]models.RequestItem, len(statuses))
	for i, status := range statuses {
		items[i] = models.RequestItem{ItemID: "ITM-TEST", Status: status}
	}
	return items
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		submitted bool
		statuses  []models.ItemStatus
		expected  models.RequestStatus
	}{
		{
			name:      "never_submitted_is_draft",
			submitted: false,
			statuses:  []models.ItemStatus{models.ItemPending, models.ItemPending},
			expected:  models.RequestDraft,
		},
		{
			name:      "all_pending",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemPending, models.ItemPending, models.ItemPending},
			expected:  models.RequestPending,
		},
		{
			name:      "all_approved",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemApproved, models.ItemApproved},
			expected:  models.RequestApproved,
		},
		{
			name:      "all_rejected",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemRejected},
			expected:  models.RequestRejected,
		},
		{
			name:      "approved_and_pending",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemApproved, models.ItemPending},
			expected:  models.RequestPartiallyApproved,
		},
		{
			name:      "rejected_and_pending",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemRejected, models.ItemPending},
			expected:  models.RequestPartiallyApproved,
		},
		{
			name:      "approved_and_rejected",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemApproved, models.ItemRejected},
			expected:  models.RequestPartiallyApproved,
		},
		{
			name:      "full_mix",
			submitted: true,
			statuses:  []models.ItemStatus{models.ItemApproved, models.ItemRejected, models.ItemPending},
			expected:  models.RequestPartiallyApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.submitted, itemsWithStatuses(tt.statuses...))
			if got != tt.expected {
				t.Errorf("Aggregate(%v, %v) = %s, want %s", tt.submitted, tt.statuses, got, tt.expected)
			}
		})
	}
}

// The aggregate must depend only on the multiset of item statuses, not their
// order.
func TestAggregate_PermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []models.ItemStatus{models.ItemPending, models.ItemApproved, models.ItemRejected}

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(8)
		statuses := make([]models.ItemStatus, n)
		for i := range statuses {
			statuses[i] = pool[rng.Intn(len(pool))]
		}

		reference := Aggregate(true, itemsWithStatuses(statuses...))
		for p := 0; p < 10; p++ {
			shuffled := append([]models.ItemStatus(nil), statuses...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			if got := Aggregate(true, itemsWithStatuses(shuffled...)); got != reference {
				t.Fatalf("permutation changed aggregate: %v -> %s, %v -> %s", statuses, reference, shuffled, got)
			}
		}
	}
}

func TestItemTotal(t *testing.T) {
	if got := ItemTotal(10, 100); got != 1000 {
		t.Errorf("ItemTotal(10, 100) = %g, want 1000", got)
	}
	if got := ItemTotal(0, 100); got != 0 {
		t.Errorf("ItemTotal(0, 100) = %g, want 0", got)
	}
}

func TestRequestTotal(t *testing.T) {
	items := []models.RequestItem{
		{Quantity: 10, RateEstimate: 100},
		{Quantity: 5, RateEstimate: 200},
	}
	if got := RequestTotal(items); got != 2000 {
		t.Errorf("RequestTotal = %g, want 2000", got)
	}
}
