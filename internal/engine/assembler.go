package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"
)

// POSelection picks one approved, unclaimed request item into a new PO line.
// A zero UnitPrice defaults to the item's approved rate estimate.
type POSelection struct {
	RequestID  string  `json:"requestID" binding:"required"`
	ItemID     string  `json:"itemID" binding:"required"`
	OrderedQty float64 `json:"orderedQty" binding:"required"`
	UnitPrice  float64 `json:"unitPrice"`
}

// ClaimableItem is one approved, unclaimed request item offered for PO
// assembly.
type ClaimableItem struct {
	RequestID    string              `json:"requestID"`
	ItemID       string              `json:"itemID"`
	Name         string              `json:"name"`
	ResourceType models.ResourceType `json:"resourceType"`
	Quantity     float64             `json:"quantity"`
	Unit         string              `json:"unit"`
	RateEstimate float64             `json:"rateEstimate"`
}

// ClaimableItems lists the approved, unclaimed items of a project, the PO
// assembly picklist. Items already claimed by any PO are never re-offered.
func (e *Engine) ClaimableItems(ctx context.Context, actor models.Actor, projectID string) ([]ClaimableItem, error) {
	if err := e.requireRole(actor, "claimableItems", models.RoleProcurement); err != nil {
		return nil, err
	}

	requests, err := e.store.ListRequests(ctx, store.RequestFilter{ProjectID: projectID})
	if err != nil {
		return nil, newError(KindInternal, "request", "", "", "claimableItems", err.Error())
	}

	items := []ClaimableItem{}
	for i := range requests {
		for j := range requests[i].Items {
			item := &requests[i].Items[j]
			if item.Status != models.ItemApproved || item.Claimed {
				continue
			}
			items = append(items, ClaimableItem{
				RequestID:    requests[i].RequestID,
				ItemID:       item.ItemID,
				Name:         item.Name,
				ResourceType: item.ResourceType,
				Quantity:     item.Quantity,
				Unit:         item.Unit,
				RateEstimate: item.RateEstimate,
			})
		}
	}
	return items, nil
}

// CreatePurchaseOrder assembles approved items into a new OPEN purchase
// order, claiming each selected item exactly once. Overlapping concurrent
// assemblies result in at most one success per item; the loser gets a
// conflict and nothing from its attempt is written.
func (e *Engine) CreatePurchaseOrder(ctx context.Context, actor models.Actor, projectID, vendor string, selections []POSelection) (*models.PurchaseOrder, error) {
	if err := e.requireRole(actor, "createPurchaseOrder", models.RoleProcurement); err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, newError(KindValidation, "purchaseOrder", "", "", "create", "projectID is required")
	}
	if len(selections) == 0 {
		return nil, newError(KindValidation, "purchaseOrder", "", "", "create", "at least one item selection is required")
	}

	po := &models.PurchaseOrder{
		POID:      newID("PO"),
		ProjectID: projectID,
		Vendor:    vendor,
		Status:    models.POOpen,
		CreatedBy: actor.UserID,
		CreatedAt: time.Now().UTC(),
	}

	loaded := map[string]*models.Request{}
	claims := make([]store.ItemClaim, 0, len(selections))
	seen := map[string]bool{}
	for _, sel := range selections {
		req, ok := loaded[sel.RequestID]
		if !ok {
			var err error
			req, err = e.loadRequest(ctx, sel.RequestID, "createPurchaseOrder")
			if err != nil {
				return nil, err
			}
			loaded[sel.RequestID] = req
		}
		if req.ProjectID != projectID {
			return nil, newError(KindValidation, "request", sel.RequestID, string(req.Status), "createPurchaseOrder", "request belongs to a different project")
		}

		item := req.Item(sel.ItemID)
		if item == nil {
			return nil, newError(KindNotFound, "item", sel.ItemID, "", "createPurchaseOrder", "no such item on request "+sel.RequestID)
		}
		if seen[sel.ItemID] {
			return nil, newError(KindValidation, "item", sel.ItemID, string(item.Status), "createPurchaseOrder", "item selected twice")
		}
		seen[sel.ItemID] = true
		if item.Status != models.ItemApproved {
			return nil, newError(KindInvalidTransition, "item", sel.ItemID, string(item.Status), "createPurchaseOrder", "only approved items can be ordered")
		}
		if item.Claimed {
			return nil, newError(KindConflict, "item", sel.ItemID, string(item.Status), "createPurchaseOrder", "item is already claimed by "+item.ClaimedByPOID)
		}
		if sel.OrderedQty <= 0 || sel.OrderedQty > item.Quantity {
			return nil, newError(KindOverOrder, "item", sel.ItemID, string(item.Status), "createPurchaseOrder",
				fmt.Sprintf("ordered quantity %g exceeds approved quantity %g", sel.OrderedQty, item.Quantity))
		}

		unitPrice := sel.UnitPrice
		if unitPrice == 0 {
			unitPrice = item.RateEstimate
		}
		po.Items = append(po.Items, models.PurchaseOrderItem{
			POItemID:   newID("POI"),
			RequestID:  sel.RequestID,
			ItemID:     sel.ItemID,
			Name:       item.Name,
			OrderedQty: sel.OrderedQty,
			Unit:       item.Unit,
			UnitPrice:  unitPrice,
		})
		po.TotalValue += sel.OrderedQty * unitPrice
		claims = append(claims, store.ItemClaim{RequestID: sel.RequestID, ItemID: sel.ItemID, POID: po.POID})
	}

	entry := newAuditEntry(models.SubjectPurchaseOrder, po.POID, "", models.ActionPOCreated, actor, "", string(po.Status))
	err := e.store.CreatePurchaseOrder(ctx, po, claims, entry)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, newError(KindConflict, "purchaseOrder", po.POID, "", "createPurchaseOrder", "an item was claimed or re-decided concurrently; refresh the picklist and retry")
	case errors.Is(err, store.ErrNotFound):
		return nil, newError(KindNotFound, "purchaseOrder", po.POID, "", "createPurchaseOrder", "a selected request disappeared")
	case err != nil:
		return nil, newError(KindInternal, "purchaseOrder", po.POID, "", "createPurchaseOrder", err.Error())
	}

	e.log.Info().Str("poID", po.POID).Str("projectID", projectID).Int("items", len(po.Items)).Float64("totalValue", po.TotalValue).Msg("purchase order created")
	e.notifyAll("po_created", po)
	return po, nil
}

// GetPurchaseOrder returns one PO by ID.
func (e *Engine) GetPurchaseOrder(ctx context.Context, poID string) (*models.PurchaseOrder, error) {
	return e.loadPO(ctx, poID, "get")
}

// ListPurchaseOrders returns POs matching the filter, oldest first.
func (e *Engine) ListPurchaseOrders(ctx context.Context, f store.POFilter) ([]models.PurchaseOrder, error) {
	orders, err := e.store.ListPurchaseOrders(ctx, f)
	if err != nil {
		return nil, newError(KindInternal, "purchaseOrder", "", "", "list", err.Error())
	}
	return orders, nil
}

func (e *Engine) loadPO(ctx context.Context, poID, action string) (*models.PurchaseOrder, error) {
	po, err := e.store.GetPurchaseOrder(ctx, poID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "purchaseOrder", poID, "", action, "purchase order not found")
	}
	if err != nil {
		return nil, newError(KindInternal, "purchaseOrder", poID, "", action, err.Error())
	}
	return po, nil
}
