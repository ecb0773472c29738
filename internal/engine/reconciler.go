package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"
)

// deliveryRetries bounds the CAS retry loop when concurrent deliveries keep
// moving a line's accumulator between our read and write.
const deliveryRetries = 8

// DeliveryLineInput is one line of a delivery submission.
type DeliveryLineInput struct {
	POItemID          string                   `json:"poItemID" binding:"required"`
	QuantityDelivered float64                  `json:"quantityDelivered" binding:"required"`
	Condition         models.DeliveryCondition `json:"condition" binding:"required"`
	Notes             string                   `json:"notes"`
}

// LineFailure reports one rejected line; the remaining lines of the same
// submission may still have been applied under the default policy.
type LineFailure struct {
	POItemID string `json:"poItemID"`
	Err      *Error `json:"error"`
}

// DeliveryResult is the outcome of a RecordDelivery call. Delivery is nil
// when no line was applied.
type DeliveryResult struct {
	Delivery      *models.Delivery     `json:"delivery,omitempty"`
	PurchaseOrder *models.PurchaseOrder `json:"purchaseOrder"`
	Failures      []LineFailure        `json:"failures,omitempty"`
}

func validCondition(c models.DeliveryCondition) bool {
	switch c {
	case models.ConditionGood, models.ConditionDamaged, models.ConditionPartialDamage, models.ConditionOther:
		return true
	}
	return false
}

// RecordDelivery reconciles a multi-line delivery against a PO. Each line
// must fit in the line's remaining quantity at the instant of the atomic
// update; a line that does not fit fails with OverDelivery. The default
// policy applies the fitting lines and reports all failures together;
// WithAllOrNothingDeliveries rejects the whole submission on any failure.
// When the delivery completes the last open line the store closes the PO in
// the same atomic unit as the lines; closure is one-way.
func (e *Engine) RecordDelivery(ctx context.Context, actor models.Actor, poID string, lines []DeliveryLineInput, notes string) (*DeliveryResult, error) {
	if err := e.requireRole(actor, "recordDelivery", models.RoleStorekeeper); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, newError(KindValidation, "purchaseOrder", poID, "", "recordDelivery", "at least one delivery line is required")
	}
	for _, line := range lines {
		if !validCondition(line.Condition) {
			return nil, newError(KindValidation, "poItem", line.POItemID, "", "recordDelivery", fmt.Sprintf("unknown condition %q", line.Condition))
		}
	}

	var (
		delivery *models.Delivery
		failures []LineFailure
	)

	for attempt := 0; ; attempt++ {
		if attempt > deliveryRetries {
			return nil, newError(KindConflict, "purchaseOrder", poID, "", "recordDelivery", "concurrent deliveries kept changing this purchase order; retry")
		}

		po, err := e.loadPO(ctx, poID, "recordDelivery")
		if err != nil {
			return nil, err
		}
		if po.Status == models.POClosed {
			return nil, newError(KindInvalidTransition, "purchaseOrder", poID, string(po.Status), "recordDelivery", "purchase order is closed")
		}

		// Partition against the current snapshot. The store re-checks the
		// snapshot values atomically, so a stale partition only costs a
		// retry, never a broken invariant.
		var casLines []store.DeliveryLine
		var applied []DeliveryLineInput
		failures = nil
		seen := map[string]bool{}
		for _, line := range lines {
			if seen[line.POItemID] {
				failures = append(failures, LineFailure{POItemID: line.POItemID,
					Err: newError(KindValidation, "poItem", line.POItemID, "", "recordDelivery", "duplicate line for the same item in one submission")})
				continue
			}
			seen[line.POItemID] = true

			item := po.Item(line.POItemID)
			if item == nil {
				failures = append(failures, LineFailure{POItemID: line.POItemID,
					Err: newError(KindNotFound, "poItem", line.POItemID, "", "recordDelivery", "no such line on this purchase order")})
				continue
			}
			remaining := item.OrderedQty - item.TotalDelivered
			if line.QuantityDelivered <= 0 || line.QuantityDelivered > remaining {
				failures = append(failures, LineFailure{POItemID: line.POItemID,
					Err: newError(KindOverDelivery, "poItem", line.POItemID, "", "recordDelivery",
						fmt.Sprintf("quantity %g does not fit remaining %g of ordered %g", line.QuantityDelivered, remaining, item.OrderedQty))})
				continue
			}

			casLines = append(casLines, store.DeliveryLine{
				POItemID: line.POItemID,
				Expect:   item.TotalDelivered,
				Qty:      line.QuantityDelivered,
				SetFull:  item.TotalDelivered+line.QuantityDelivered == item.OrderedQty,
			})
			applied = append(applied, line)
		}

		if e.allOrNothing && len(failures) > 0 {
			return &DeliveryResult{PurchaseOrder: po, Failures: failures}, firstFailure(failures, poID)
		}
		if len(casLines) == 0 {
			return &DeliveryResult{PurchaseOrder: po, Failures: failures}, firstFailure(failures, poID)
		}

		// Will this delivery complete the PO? Lines we are not touching
		// must already be fully delivered. Only the audit snapshot depends
		// on this; the store recomputes closure itself.
		projectedClose := true
		full := map[string]bool{}
		for _, cl := range casLines {
			full[cl.POItemID] = cl.SetFull
		}
		for i := range po.Items {
			item := &po.Items[i]
			if done, touched := full[item.POItemID]; touched {
				if !done {
					projectedClose = false
					break
				}
				continue
			}
			if item.TotalDelivered != item.OrderedQty {
				projectedClose = false
				break
			}
		}

		delivery = &models.Delivery{
			DeliveryID:    newID("DLV"),
			POID:          poID,
			ReceivedBy:    actor.UserID,
			DeliveredDate: time.Now().UTC(),
			Notes:         notes,
		}
		for _, line := range applied {
			delivery.Items = append(delivery.Items, models.DeliveryItem{
				POItemID:          line.POItemID,
				QuantityDelivered: line.QuantityDelivered,
				Condition:         line.Condition,
				Notes:             line.Notes,
			})
		}

		snapshot := models.POOpen
		if projectedClose {
			snapshot = models.POClosed
		}
		entry := newAuditEntry(models.SubjectPurchaseOrder, poID, "", models.ActionDeliveryRecorded, actor, notes, string(snapshot))

		err = e.store.ApplyDelivery(ctx, poID, casLines, delivery, entry)
		if errors.Is(err, store.ErrConflict) {
			continue // someone else moved an accumulator; re-read and re-check
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "purchaseOrder", poID, "", "recordDelivery", "purchase order not found")
		}
		if err != nil {
			return nil, newError(KindInternal, "purchaseOrder", poID, "", "recordDelivery", err.Error())
		}
		break
	}

	po, err := e.loadPO(ctx, poID, "recordDelivery")
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("poID", poID).Str("deliveryID", delivery.DeliveryID).Int("applied", len(delivery.Items)).Int("failed", len(failures)).Str("status", string(po.Status)).Msg("delivery recorded")
	e.notifyAll("delivery_recorded", map[string]interface{}{"delivery": delivery, "poStatus": po.Status})

	return &DeliveryResult{Delivery: delivery, PurchaseOrder: po, Failures: failures}, nil
}

// ListDeliveries returns the deliveries recorded against a PO, oldest first.
func (e *Engine) ListDeliveries(ctx context.Context, poID string) ([]models.Delivery, error) {
	if _, err := e.loadPO(ctx, poID, "listDeliveries"); err != nil {
		return nil, err
	}
	deliveries, err := e.store.ListDeliveries(ctx, poID)
	if err != nil {
		return nil, newError(KindInternal, "purchaseOrder", poID, "", "listDeliveries", err.Error())
	}
	return deliveries, nil
}

// firstFailure picks the error to return when nothing was applied: an
// over-delivery if present, otherwise the first line failure.
func firstFailure(failures []LineFailure, poID string) error {
	if len(failures) == 0 {
		return newError(KindValidation, "purchaseOrder", poID, "", "recordDelivery", "no applicable delivery lines")
	}
	for _, f := range failures {
		if f.Err.Kind == KindOverDelivery {
			return f.Err
		}
	}
	return failures[0].Err
}
