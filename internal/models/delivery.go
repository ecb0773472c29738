package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DeliveryCondition string

const (
	ConditionGood          DeliveryCondition = "GOOD"
	ConditionDamaged       DeliveryCondition = "DAMAGED"
	ConditionPartialDamage DeliveryCondition = "PARTIAL_DAMAGE"
	ConditionOther         DeliveryCondition = "OTHER"
)

// DeliveryItem records the quantity received against one PO line.
type DeliveryItem struct {
	POItemID          string            `bson:"poItemID" json:"poItemID"`
	QuantityDelivered float64           `bson:"quantityDelivered" json:"quantityDelivered"`
	Condition         DeliveryCondition `bson:"condition" json:"condition"` // GOOD, DAMAGED, PARTIAL_DAMAGE, OTHER
	Notes             string            `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Delivery is immutable once recorded. Corrections are new deliveries.
type Delivery struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeliveryID    string             `bson:"deliveryID" json:"deliveryID"`
	POID          string             `bson:"poID" json:"poID"`
	Items         []DeliveryItem     `bson:"items" json:"items"`
	ReceivedBy    string             `bson:"receivedBy" json:"receivedBy"`
	DeliveredDate time.Time          `bson:"deliveredDate" json:"deliveredDate"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
}
