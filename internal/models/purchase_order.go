// server/internal/models/purchase_order.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type POStatus string

const (
	POOpen   POStatus = "OPEN"
	POClosed POStatus = "CLOSED"
)

// PurchaseOrderItem is one ordered line. RequestID/ItemID form the claim
// back-reference to the originating RequestItem; it is a relation only, the
// RequestItem keeps being mutated through the request lifecycle.
// TotalDelivered only ever grows and never exceeds OrderedQty.
type PurchaseOrderItem struct {
	POItemID       string  `bson:"poItemID" json:"poItemID"`
	RequestID      string  `bson:"requestID" json:"requestID"`
	ItemID         string  `bson:"itemID" json:"itemID"`
	Name           string  `bson:"name" json:"name"`
	OrderedQty     float64 `bson:"orderedQty" json:"orderedQty"`
	Unit           string  `bson:"unit" json:"unit"`
	UnitPrice      float64 `bson:"unitPrice" json:"unitPrice"`
	TotalDelivered float64 `bson:"totalDelivered" json:"totalDelivered"`
	FullyDelivered bool    `bson:"fullyDelivered" json:"fullyDelivered"`
}

// PurchaseOrder owns its items. Status is recomputed from the items (CLOSED
// iff every line is fully delivered), never set directly, and closure is
// one-way.
type PurchaseOrder struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	POID       string              `bson:"poID" json:"poID"`
	ProjectID  string              `bson:"projectID" json:"projectID"`
	Vendor     string              `bson:"vendor,omitempty" json:"vendor,omitempty"`
	Items      []PurchaseOrderItem `bson:"items" json:"items"`
	Status     POStatus            `bson:"status" json:"status"`
	TotalValue float64             `bson:"totalValue" json:"totalValue"`
	CreatedBy  string              `bson:"createdBy" json:"createdBy"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	ClosedAt   *time.Time          `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
}

// Item returns a pointer to the line with the given ID, or nil.
func (po *PurchaseOrder) Item(poItemID string) *PurchaseOrderItem {
	for i := range po.Items {
		if po.Items[i].POItemID == poItemID {
			return &po.Items[i]
		}
	}
	return nil
}
