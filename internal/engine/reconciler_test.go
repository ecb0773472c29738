package engine

import (
	"context"
	"sync"
	"testing"

	"site-procurement-api-server/internal/models"
)

func deliverOne(t *testing.T, e *Engine, poID, poItemID string, qty float64) (*DeliveryResult, error) {
	t.Helper()
	return e.RecordDelivery(context.Background(), storekeeperActor, poID, []DeliveryLineInput{
		{POItemID: poItemID, QuantityDelivered: qty, Condition: models.ConditionGood},
	}, "")
}

func TestDeliveryReconciliation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	po := singleLinePO(t, e, 100, 10)
	line := po.Items[0].POItemID

	result, err := deliverOne(t, e, po.POID, line, 60)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if got := result.PurchaseOrder.Item(line).TotalDelivered; got != 60 {
		t.Fatalf("totalDelivered = %g, want 60", got)
	}
	if result.PurchaseOrder.Status != models.POOpen {
		t.Fatalf("PO status = %s, want OPEN", result.PurchaseOrder.Status)
	}

	// 50 does not fit in the remaining 40.
	result, err = deliverOne(t, e, po.POID, line, 50)
	assertKind(t, err, KindOverDelivery)
	if len(result.Failures) != 1 || result.Failures[0].POItemID != line {
		t.Fatalf("failures = %+v, want one for %s", result.Failures, line)
	}
	got, _ := e.GetPurchaseOrder(ctx, po.POID)
	if got.Item(line).TotalDelivered != 60 {
		t.Fatalf("rejected delivery changed accumulator: %g", got.Item(line).TotalDelivered)
	}

	result, err = deliverOne(t, e, po.POID, line, 40)
	if err != nil {
		t.Fatalf("closing delivery: %v", err)
	}
	final := result.PurchaseOrder
	if final.Item(line).TotalDelivered != 100 || !final.Item(line).FullyDelivered {
		t.Fatalf("final line = %+v, want fully delivered 100", final.Item(line))
	}
	if final.Status != models.POClosed {
		t.Fatalf("PO status = %s, want CLOSED", final.Status)
	}
	if final.ClosedAt == nil {
		t.Fatal("ClosedAt not set on closure")
	}

	// Closure is one-way.
	_, err = deliverOne(t, e, po.POID, line, 1)
	assertKind(t, err, KindInvalidTransition)
	got, _ = e.GetPurchaseOrder(ctx, po.POID)
	if got.Status != models.POClosed {
		t.Fatalf("PO reopened: %s", got.Status)
	}

	deliveries, err := e.ListDeliveries(ctx, po.POID)
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("recorded deliveries = %d, want 2 (rejected ones leave no record)", len(deliveries))
	}
}

func TestDeliveryPartialPolicy(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	req := submittedTwoItemRequest(t, e)
	m1, m2 := req.Items[0].ItemID, req.Items[1].ItemID
	approveItem(t, e, req.RequestID, m1)
	approveItem(t, e, req.RequestID, m2)
	po, err := e.CreatePurchaseOrder(ctx, procurementActor, "PRJ-SITE-A", "ACME", []POSelection{
		{RequestID: req.RequestID, ItemID: m1, OrderedQty: 10},
		{RequestID: req.RequestID, ItemID: m2, OrderedQty: 5},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	l1, l2 := po.Items[0].POItemID, po.Items[1].POItemID

	result, err := e.RecordDelivery(ctx, storekeeperActor, po.POID, []DeliveryLineInput{
		{POItemID: l1, QuantityDelivered: 4, Condition: models.ConditionGood},
		{POItemID: l2, QuantityDelivered: 99, Condition: models.ConditionGood},
		{POItemID: "POI-MISSING0", QuantityDelivered: 1, Condition: models.ConditionGood},
	}, "mixed batch")
	if err != nil {
		t.Fatalf("partial policy must apply the fitting lines: %v", err)
	}
	if result.Delivery == nil || len(result.Delivery.Items) != 1 || result.Delivery.Items[0].POItemID != l1 {
		t.Fatalf("delivery = %+v, want only line %s applied", result.Delivery, l1)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("failures = %+v, want 2", result.Failures)
	}
	kinds := map[string]Kind{}
	for _, f := range result.Failures {
		kinds[f.POItemID] = f.Err.Kind
	}
	if kinds[l2] != KindOverDelivery {
		t.Errorf("failure kind for %s = %s, want OVER_DELIVERY", l2, kinds[l2])
	}
	if kinds["POI-MISSING0"] != KindNotFound {
		t.Errorf("failure kind for missing line = %s, want NOT_FOUND", kinds["POI-MISSING0"])
	}

	got, _ := e.GetPurchaseOrder(ctx, po.POID)
	if got.Item(l1).TotalDelivered != 4 {
		t.Errorf("line 1 totalDelivered = %g, want 4", got.Item(l1).TotalDelivered)
	}
	if got.Item(l2).TotalDelivered != 0 {
		t.Errorf("line 2 totalDelivered = %g, want 0", got.Item(l2).TotalDelivered)
	}
}

func TestDeliveryAllOrNothing(t *testing.T) {
	e := newTestEngine(WithAllOrNothingDeliveries())
	ctx := context.Background()

	po := singleLinePO(t, e, 100, 10)
	line := po.Items[0].POItemID

	result, err := e.RecordDelivery(ctx, storekeeperActor, po.POID, []DeliveryLineInput{
		{POItemID: line, QuantityDelivered: 60, Condition: models.ConditionGood},
		{POItemID: "POI-MISSING0", QuantityDelivered: 1, Condition: models.ConditionGood},
	}, "")
	assertKind(t, err, KindNotFound)
	if result.Delivery != nil {
		t.Fatalf("delivery recorded despite failed submission: %+v", result.Delivery)
	}

	got, _ := e.GetPurchaseOrder(ctx, po.POID)
	if got.Item(line).TotalDelivered != 0 {
		t.Fatalf("all-or-nothing applied a line: %g", got.Item(line).TotalDelivered)
	}
	deliveries, _ := e.ListDeliveries(ctx, po.POID)
	if len(deliveries) != 0 {
		t.Fatalf("deliveries recorded = %d, want 0", len(deliveries))
	}
}

func TestDeliveryValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	po := singleLinePO(t, e, 100, 10)
	line := po.Items[0].POItemID

	_, err := e.RecordDelivery(ctx, storekeeperActor, po.POID, nil, "")
	assertKind(t, err, KindValidation)

	_, err = e.RecordDelivery(ctx, storekeeperActor, po.POID, []DeliveryLineInput{
		{POItemID: line, QuantityDelivered: 1, Condition: "SOGGY"},
	}, "")
	assertKind(t, err, KindValidation)

	_, err = e.RecordDelivery(ctx, storekeeperActor, "PO-MISSING0", []DeliveryLineInput{
		{POItemID: line, QuantityDelivered: 1, Condition: models.ConditionGood},
	}, "")
	assertKind(t, err, KindNotFound)

	_, err = deliverOne(t, e, po.POID, line, 0)
	assertKind(t, err, KindOverDelivery)

	_, err = e.RecordDelivery(ctx, requesterActor, po.POID, []DeliveryLineInput{
		{POItemID: line, QuantityDelivered: 1, Condition: models.ConditionGood},
	}, "")
	assertKind(t, err, KindUnauthorized)
}

// Concurrent deliveries against one line must never push the accumulator past
// the ordered quantity, no matter how the goroutines interleave.
func TestConcurrentDeliveriesBounded(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	po := singleLinePO(t, e, 100, 10)
	line := po.Items[0].POItemID

	const racers = 6
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = deliverOne(t, e, po.POID, line, 30)
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, err := range errs {
		switch {
		case err == nil:
			applied++
		case IsKind(err, KindOverDelivery):
		default:
			t.Fatalf("unexpected race error: %v", err)
		}
	}

	got, err := e.GetPurchaseOrder(ctx, po.POID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	total := got.Item(line).TotalDelivered
	if total != float64(applied*30) {
		t.Fatalf("totalDelivered = %g, want %d applied x 30", total, applied)
	}
	if total > 100 {
		t.Fatalf("totalDelivered %g exceeds ordered 100", total)
	}
	if applied != 3 {
		t.Fatalf("applied deliveries = %d, want exactly 3 (3 x 30 fits, a 4th cannot)", applied)
	}
	if got.Status != models.POOpen {
		t.Fatalf("PO status = %s, want OPEN with 10 remaining", got.Status)
	}

	// The remainder still fits and closes the PO.
	result, err := deliverOne(t, e, po.POID, line, 10)
	if err != nil {
		t.Fatalf("final delivery: %v", err)
	}
	if result.PurchaseOrder.Status != models.POClosed {
		t.Fatalf("PO status = %s, want CLOSED", result.PurchaseOrder.Status)
	}
}

func TestClosureRequiresEveryLine(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	req := submittedTwoItemRequest(t, e)
	m1, m2 := req.Items[0].ItemID, req.Items[1].ItemID
	approveItem(t, e, req.RequestID, m1)
	approveItem(t, e, req.RequestID, m2)
	po, err := e.CreatePurchaseOrder(ctx, procurementActor, "PRJ-SITE-A", "ACME", []POSelection{
		{RequestID: req.RequestID, ItemID: m1, OrderedQty: 10},
		{RequestID: req.RequestID, ItemID: m2, OrderedQty: 5},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	l1, l2 := po.Items[0].POItemID, po.Items[1].POItemID

	result, err := deliverOne(t, e, po.POID, l1, 10)
	if err != nil {
		t.Fatalf("delivery: %v", err)
	}
	if result.PurchaseOrder.Status != models.POOpen {
		t.Fatalf("PO closed with an open line: %s", result.PurchaseOrder.Status)
	}
	if !result.PurchaseOrder.Item(l1).FullyDelivered {
		t.Fatal("completed line not marked fully delivered")
	}

	result, err = deliverOne(t, e, po.POID, l2, 5)
	if err != nil {
		t.Fatalf("delivery: %v", err)
	}
	if result.PurchaseOrder.Status != models.POClosed {
		t.Fatalf("PO status = %s, want CLOSED after last line", result.PurchaseOrder.Status)
	}
}
