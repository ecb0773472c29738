package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	ActionCreated          AuditAction = "CREATED"
	ActionSubmitted        AuditAction = "SUBMITTED"
	ActionApproved         AuditAction = "APPROVED"
	ActionRejected         AuditAction = "REJECTED"
	ActionMaterialApproved AuditAction = "MATERIAL_APPROVED"
	ActionMaterialRejected AuditAction = "MATERIAL_REJECTED"
	ActionUpdated          AuditAction = "UPDATED"
	ActionResubmitted      AuditAction = "RESUBMITTED"
	ActionPOCreated        AuditAction = "PO_CREATED"
	ActionDeliveryRecorded AuditAction = "DELIVERY_RECORDED"
)

// Subject types an audit entry can point at.
const (
	SubjectRequest       = "REQUEST"
	SubjectRequestItem   = "REQUEST_ITEM"
	SubjectPurchaseOrder = "PURCHASE_ORDER"
)

// AuditEntry is immutable and append-only. Seq is a store-assigned monotonic
// sequence that breaks timestamp ties, so history reads are deterministic.
type AuditEntry struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Seq            int64              `bson:"seq" json:"seq"`
	SubjectType    string             `bson:"subjectType" json:"subjectType"` // REQUEST, REQUEST_ITEM, PURCHASE_ORDER
	SubjectID      string             `bson:"subjectID" json:"subjectID"`
	ItemID         string             `bson:"itemID,omitempty" json:"itemID,omitempty"`
	Action         AuditAction        `bson:"action" json:"action"`
	ActorID        string             `bson:"actorID" json:"actorID"`
	ActorRole      string             `bson:"actorRole" json:"actorRole"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	Comment        string             `bson:"comment,omitempty" json:"comment,omitempty"`
	StatusSnapshot string             `bson:"statusSnapshot" json:"statusSnapshot"`
}
