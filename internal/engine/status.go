package engine

import "site-procurement-api-server/internal/models"

// ItemTotal is the single derivation point for a line's estimate. Every edit
// to quantity or rate goes through here; the stored totalEstimate is a cache
// of this value and never authoritative on its own.
func ItemTotal(quantity, rateEstimate float64) float64 {
	return quantity * rateEstimate
}

// RequestTotal derives the request's total value from its items.
func RequestTotal(items []models.RequestItem) float64 {
	var total float64
	for i := range items {
		total += ItemTotal(items[i].Quantity, items[i].RateEstimate)
	}
	return total
}

// Aggregate derives the request-level status from the item statuses. It is a
// pure function of (submitted, item status multiset); the cached request
// status is refreshed from it after every item mutation and never hand-set.
func Aggregate(submitted bool, items []models.RequestItem) models.RequestStatus {
	if !submitted {
		return models.RequestDraft
	}

	var pending, approved, rejected int
	for i := range items {
		switch items[i].Status {
		case models.ItemApproved:
			approved++
		case models.ItemRejected:
			rejected++
		default:
			pending++
		}
	}

	switch {
	case pending == len(items):
		return models.RequestPending
	case pending == 0 && rejected == 0:
		return models.RequestApproved
	case pending == 0 && approved == 0:
		return models.RequestRejected
	default:
		// Any decided item mixed with anything else, pending remainder
		// included.
		return models.RequestPartiallyApproved
	}
}

// refreshDerived recomputes every derived field on the request: per-item
// totals, the cached total value and the cached aggregate status.
func refreshDerived(req *models.Request) {
	for i := range req.Items {
		req.Items[i].TotalEstimate = ItemTotal(req.Items[i].Quantity, req.Items[i].RateEstimate)
	}
	req.TotalValue = RequestTotal(req.Items)
	req.Status = Aggregate(req.SubmittedAt != nil, req.Items)
}
