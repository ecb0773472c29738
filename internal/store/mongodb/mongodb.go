// Package mongodb implements the storage port on MongoDB. Requests and
// purchase orders are documents embedding their item arrays, so every CAS
// mutation is a single filtered write on one document (request replaces are
// filtered on the document version, delivery lines on the accumulator value,
// ModifiedCount == 0 means another operation won the race). Audit entries are
// inserted in the same session transaction as the mutation they record.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"
)

const (
	colRequests   = "requests"
	colOrders     = "purchase_orders"
	colDeliveries = "deliveries"
	colAudit      = "audit_log"
	colUsers      = "users"
	colCounters   = "counters"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Verify interface compliance
var _ store.Store = (*Store)(nil)

// NewStore wraps an established database handle. Transactions require the
// deployment to be a replica set.
func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

func (s *Store) withTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// nextSeq hands out the global monotonic audit sequence.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(
		ctx,
		bson.M{"_id": "audit"},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *Store) appendEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry == nil {
		return nil
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	entry.Seq = seq
	_, err = s.db.Collection(colAudit).InsertOne(ctx, entry)
	return err
}

func (s *Store) InsertRequest(ctx context.Context, req *models.Request, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		count, err := s.db.Collection(colRequests).CountDocuments(sc, bson.M{"requestID": req.RequestID})
		if err != nil {
			return err
		}
		if count > 0 {
			return store.ErrDuplicate
		}
		if _, err := s.db.Collection(colRequests).InsertOne(sc, req); err != nil {
			return err
		}
		return s.appendEntry(sc, entry)
	})
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	var req models.Request
	err := s.db.Collection(colRequests).FindOne(ctx, bson.M{"requestID": requestID}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]models.Request, error) {
	filter := bson.M{}
	if f.ProjectID != "" {
		filter["projectID"] = f.ProjectID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.CreatedBy != "" {
		filter["createdBy"] = f.CreatedBy
	}

	cursor, err := s.db.Collection(colRequests).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var requests []models.Request
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []models.Request{}
	}
	return requests, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req *models.Request, entry *models.AuditEntry) error {
	// The replace is filtered on the version the caller read, so a stale
	// snapshot cannot overwrite a concurrent commit, a sibling item's
	// decision or an assembly claim included.
	filter := bson.M{"requestID": req.RequestID, "version": req.Version}
	next := *req
	next.Version++

	err := s.withTx(ctx, func(sc mongo.SessionContext) error {
		result, err := s.db.Collection(colRequests).ReplaceOne(sc, filter, &next)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			// Version miss or missing document; tell them apart.
			count, err := s.db.Collection(colRequests).CountDocuments(sc, bson.M{"requestID": req.RequestID})
			if err != nil {
				return err
			}
			if count == 0 {
				return store.ErrNotFound
			}
			return store.ErrConflict
		}
		return s.appendEntry(sc, entry)
	})
	if err == nil {
		req.Version = next.Version
	}
	return err
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder, claims []store.ItemClaim, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		// Each claim is a CAS on the item still being approved and
		// unclaimed. One miss aborts the transaction and releases every
		// claim already applied. The version bump invalidates outstanding
		// snapshots of the request so a racing replace cannot erase the
		// claim.
		for _, claim := range claims {
			filter := bson.M{
				"requestID": claim.RequestID,
				"items": bson.M{"$elemMatch": bson.M{
					"itemID":  claim.ItemID,
					"status":  models.ItemApproved,
					"claimed": false,
				}},
			}
			update := bson.M{
				"$set": bson.M{
					"items.$.claimed":       true,
					"items.$.claimedByPOID": claim.POID,
				},
				"$inc": bson.M{"version": int64(1)},
			}
			result, err := s.db.Collection(colRequests).UpdateOne(sc, filter, update)
			if err != nil {
				return err
			}
			if result.ModifiedCount == 0 {
				// A missing request or item is a bad selection, not a race.
				var reqDoc models.Request
				err := s.db.Collection(colRequests).FindOne(sc, bson.M{"requestID": claim.RequestID}).Decode(&reqDoc)
				if err == mongo.ErrNoDocuments {
					return store.ErrNotFound
				}
				if err != nil {
					return err
				}
				if reqDoc.Item(claim.ItemID) == nil {
					return store.ErrNotFound
				}
				return store.ErrConflict
			}
		}

		if _, err := s.db.Collection(colOrders).InsertOne(sc, po); err != nil {
			return err
		}
		return s.appendEntry(sc, entry)
	})
}

func (s *Store) GetPurchaseOrder(ctx context.Context, poID string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := s.db.Collection(colOrders).FindOne(ctx, bson.M{"poID": poID}).Decode(&po)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, f store.POFilter) ([]models.PurchaseOrder, error) {
	filter := bson.M{}
	if f.ProjectID != "" {
		filter["projectID"] = f.ProjectID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	cursor, err := s.db.Collection(colOrders).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.PurchaseOrder
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.PurchaseOrder{}
	}
	return orders, nil
}

func (s *Store) ApplyDelivery(ctx context.Context, poID string, lines []store.DeliveryLine, d *models.Delivery, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		for _, line := range lines {
			filter := bson.M{
				"poID": poID,
				"items": bson.M{"$elemMatch": bson.M{
					"poItemID":       line.POItemID,
					"totalDelivered": line.Expect,
				}},
			}
			set := bson.M{}
			if line.SetFull {
				set["items.$.fullyDelivered"] = true
			}
			update := bson.M{"$inc": bson.M{"items.$.totalDelivered": line.Qty}}
			if len(set) > 0 {
				update["$set"] = set
			}
			result, err := s.db.Collection(colOrders).UpdateOne(sc, filter, update)
			if err != nil {
				return err
			}
			if result.ModifiedCount == 0 {
				return store.ErrConflict
			}
		}

		// Closure happens in the same transaction as the lines. The guard
		// restates "every line fully delivered" server-side; when it does not
		// hold the update matches nothing and the PO stays OPEN.
		closeFilter := bson.M{
			"poID":   poID,
			"status": models.POOpen,
			"$expr": bson.M{"$allElementsTrue": bson.M{
				"$map": bson.M{
					"input": "$items",
					"in":    bson.M{"$eq": bson.A{"$$this.totalDelivered", "$$this.orderedQty"}},
				},
			}},
		}
		closeUpdate := bson.M{"$set": bson.M{"status": models.POClosed, "closedAt": time.Now().UTC()}}
		if _, err := s.db.Collection(colOrders).UpdateOne(sc, closeFilter, closeUpdate); err != nil {
			return err
		}

		if _, err := s.db.Collection(colDeliveries).InsertOne(sc, d); err != nil {
			return err
		}
		return s.appendEntry(sc, entry)
	})
}

func (s *Store) ListDeliveries(ctx context.Context, poID string) ([]models.Delivery, error) {
	cursor, err := s.db.Collection(colDeliveries).Find(ctx, bson.M{"poID": poID}, options.Find().SetSort(bson.D{{Key: "deliveredDate", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var deliveries []models.Delivery
	if err = cursor.All(ctx, &deliveries); err != nil {
		return nil, err
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	return deliveries, nil
}

func (s *Store) History(ctx context.Context, subjectID string) ([]models.AuditEntry, error) {
	cursor, err := s.db.Collection(colAudit).Find(
		ctx,
		bson.M{"subjectID": subjectID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.AuditEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	count, err := s.db.Collection(colUsers).CountDocuments(ctx, bson.M{"email": user.Email})
	if err != nil {
		return err
	}
	if count > 0 {
		return store.ErrDuplicate
	}
	_, err = s.db.Collection(colUsers).InsertOne(ctx, user)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
