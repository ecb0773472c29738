// server/internal/models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ResourceType string

const (
	ResourceMaterial ResourceType = "MATERIAL"
	ResourceLabour   ResourceType = "LABOUR"
)

type ItemStatus string

const (
	ItemPending  ItemStatus = "PENDING"
	ItemApproved ItemStatus = "APPROVED"
	ItemRejected ItemStatus = "REJECTED"
)

type RequestStatus string

const (
	RequestDraft             RequestStatus = "DRAFT"
	RequestPending           RequestStatus = "PENDING"
	RequestApproved          RequestStatus = "APPROVED"
	RequestRejected          RequestStatus = "REJECTED"
	RequestPartiallyApproved RequestStatus = "PARTIALLY_APPROVED"
)

// RequestItem is one BOQ line inside a Request. TotalEstimate is derived
// (quantity × rateEstimate) and is recomputed through engine.ItemTotal on
// every edit; it is never written independently.
type RequestItem struct {
	ItemID           string       `bson:"itemID" json:"itemID"`
	ResourceType     ResourceType `bson:"resourceType" json:"resourceType"` // MATERIAL, LABOUR
	Name             string       `bson:"name" json:"name"`
	Quantity         float64      `bson:"quantity" json:"quantity"`
	Unit             string       `bson:"unit" json:"unit"`
	RateEstimate     float64      `bson:"rateEstimate" json:"rateEstimate"`
	TotalEstimate    float64      `bson:"totalEstimate" json:"totalEstimate"`
	Status           ItemStatus   `bson:"status" json:"status"`
	RejectionComment string       `bson:"rejectionComment,omitempty" json:"rejectionComment,omitempty"`
	Claimed          bool         `bson:"claimed" json:"claimed"`
	ClaimedByPOID    string       `bson:"claimedByPOID,omitempty" json:"claimedByPOID,omitempty"`
}

// Request is the aggregate root for a multi-line procurement request. Items
// are embedded; insertion order is meaningful for display only. Status and
// TotalValue are caches of the aggregator output, refreshed after every item
// mutation. Version is the optimistic concurrency token: every committed
// write to the document, item claims included, increments it.
type Request struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID            string             `bson:"requestID" json:"requestID"`
	ProjectID            string             `bson:"projectID" json:"projectID"`
	Title                string             `bson:"title" json:"title"`
	Priority             string             `bson:"priority" json:"priority"` // LOW, MEDIUM, HIGH, URGENT
	Items                []RequestItem      `bson:"items" json:"items"`
	Status               RequestStatus      `bson:"status" json:"status"`
	TotalValue           float64            `bson:"totalValue" json:"totalValue"`
	RevisionNumber       int                `bson:"revisionNumber" json:"revisionNumber"`
	Version              int64              `bson:"version" json:"version"`
	IsDuplicateFlagged   bool               `bson:"isDuplicateFlagged" json:"isDuplicateFlagged"`
	DuplicateExplanation string             `bson:"duplicateExplanation,omitempty" json:"duplicateExplanation,omitempty"`
	CreatedBy            string             `bson:"createdBy" json:"createdBy"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	SubmittedAt          *time.Time         `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
}

// Item returns a pointer to the item with the given ID, or nil.
func (r *Request) Item(itemID string) *RequestItem {
	for i := range r.Items {
		if r.Items[i].ItemID == itemID {
			return &r.Items[i]
		}
	}
	return nil
}
