package engine

import (
	"context"
	"testing"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store/memory"
)

var (
	requesterActor   = models.Actor{UserID: "USR-RAVI0001", Name: "Ravi", Role: models.RoleRequester}
	reviewerActor    = models.Actor{UserID: "USR-MINH0001", Name: "Minh", Role: models.RoleReviewer}
	procurementActor = models.Actor{UserID: "USR-LINH0001", Name: "Linh", Role: models.RoleProcurement}
	storekeeperActor = models.Actor{UserID: "USR-HOA00001", Name: "Hoa", Role: models.RoleStorekeeper}
)

func newTestEngine(opts ...Option) *Engine {
	return New(memory.NewStore(), opts...)
}

// twoItemRequest creates a draft with M1 (10 x 100) and M2 (5 x 200).
func twoItemRequest(t *testing.T, e *Engine) *models.Request {
	t.Helper()
	req, err := e.CreateRequest(context.Background(), requesterActor, CreateRequestInput{
		ProjectID: "PRJ-SITE-A",
		Title:     "Foundation materials",
		Items: []NewItemInput{
			{ResourceType: models.ResourceMaterial, Name: "Cement", Quantity: 10, Unit: "bag", RateEstimate: 100},
			{ResourceType: models.ResourceMaterial, Name: "Steel rebar", Quantity: 5, Unit: "ton", RateEstimate: 200},
		},
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return req
}

func submittedTwoItemRequest(t *testing.T, e *Engine) *models.Request {
	t.Helper()
	req := twoItemRequest(t, e)
	req, err := e.Submit(context.Background(), requesterActor, req.RequestID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return req
}

func approveItem(t *testing.T, e *Engine, requestID, itemID string) *models.Request {
	t.Helper()
	req, err := e.DecideItem(context.Background(), reviewerActor, requestID, itemID, DecisionApprove, "")
	if err != nil {
		t.Fatalf("DecideItem(%s, APPROVE): %v", itemID, err)
	}
	return req
}

// singleLinePO approves one item of the given quantity and assembles it into
// an open PO.
func singleLinePO(t *testing.T, e *Engine, qty, rate float64) *models.PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	req, err := e.CreateRequest(ctx, requesterActor, CreateRequestInput{
		ProjectID: "PRJ-SITE-A",
		Title:     "Single line",
		Items: []NewItemInput{
			{ResourceType: models.ResourceMaterial, Name: "Bricks", Quantity: qty, Unit: "pcs", RateEstimate: rate},
		},
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := e.Submit(ctx, requesterActor, req.RequestID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req = approveItem(t, e, req.RequestID, req.Items[0].ItemID)

	po, err := e.CreatePurchaseOrder(ctx, procurementActor, "PRJ-SITE-A", "ACME Supplies", []POSelection{
		{RequestID: req.RequestID, ItemID: req.Items[0].ItemID, OrderedQty: qty},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	return po
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}
