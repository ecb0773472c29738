// Package memory provides an in-memory Store implementation honouring the
// same compare-and-swap contract as the MongoDB store. It backs the engine
// tests, including the concurrent delivery tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"
)

type Store struct {
	mu         sync.Mutex
	requests   map[string]*models.Request
	orders     map[string]*models.PurchaseOrder
	deliveries map[string][]models.Delivery
	audit      []models.AuditEntry
	users      map[string]*models.User
	seq        int64
}

// Verify interface compliance
var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		requests:   make(map[string]*models.Request),
		orders:     make(map[string]*models.PurchaseOrder),
		deliveries: make(map[string][]models.Delivery),
		users:      make(map[string]*models.User),
	}
}

// appendEntry assigns the monotonic sequence. Callers hold s.mu.
func (s *Store) appendEntry(entry *models.AuditEntry) {
	if entry == nil {
		return
	}
	s.seq++
	entry.Seq = s.seq
	s.audit = append(s.audit, *entry)
}

func copyRequest(req *models.Request) *models.Request {
	cp := *req
	cp.Items = append([]models.RequestItem(nil), req.Items...)
	return &cp
}

func copyPO(po *models.PurchaseOrder) *models.PurchaseOrder {
	cp := *po
	cp.Items = append([]models.PurchaseOrderItem(nil), po.Items...)
	return &cp
}

func (s *Store) InsertRequest(ctx context.Context, req *models.Request, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.RequestID]; ok {
		return store.ErrDuplicate
	}
	s.requests[req.RequestID] = copyRequest(req)
	s.appendEntry(entry)
	return nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyRequest(req), nil
}

func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Request{}
	for _, req := range s.requests {
		if f.ProjectID != "" && req.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.CreatedBy != "" && req.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, *copyRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req *models.Request, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[req.RequestID]
	if !ok {
		return store.ErrNotFound
	}
	// A stale snapshot must never overwrite a concurrent commit, not even one
	// that only touched a sibling item.
	if stored.Version != req.Version {
		return store.ErrConflict
	}
	req.Version++
	s.requests[req.RequestID] = copyRequest(req)
	s.appendEntry(entry)
	return nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder, claims []store.ItemClaim, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[po.POID]; ok {
		return store.ErrDuplicate
	}

	// Validate every claim before touching anything; a single lost claim
	// fails the whole creation.
	for _, claim := range claims {
		req, ok := s.requests[claim.RequestID]
		if !ok {
			return store.ErrNotFound
		}
		item := req.Item(claim.ItemID)
		if item == nil {
			return store.ErrNotFound
		}
		if item.Status != models.ItemApproved || item.Claimed {
			return store.ErrConflict
		}
	}

	for _, claim := range claims {
		req := s.requests[claim.RequestID]
		item := req.Item(claim.ItemID)
		item.Claimed = true
		item.ClaimedByPOID = claim.POID
		// Invalidate outstanding snapshots of the request so a racing update
		// cannot replace the document and erase the claim.
		req.Version++
	}
	s.orders[po.POID] = copyPO(po)
	s.appendEntry(entry)
	return nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, poID string) (*models.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.orders[poID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyPO(po), nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, f store.POFilter) ([]models.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.PurchaseOrder{}
	for _, po := range s.orders {
		if f.ProjectID != "" && po.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && po.Status != f.Status {
			continue
		}
		out = append(out, *copyPO(po))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ApplyDelivery(ctx context.Context, poID string, lines []store.DeliveryLine, d *models.Delivery, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.orders[poID]
	if !ok {
		return store.ErrNotFound
	}

	// All CAS guards must hold before any line is applied.
	for _, line := range lines {
		item := po.Item(line.POItemID)
		if item == nil {
			return store.ErrNotFound
		}
		if item.TotalDelivered != line.Expect {
			return store.ErrConflict
		}
	}

	for _, line := range lines {
		item := po.Item(line.POItemID)
		item.TotalDelivered += line.Qty
		if line.SetFull {
			item.FullyDelivered = true
		}
	}

	// Closure is recomputed here, in the same atomic unit as the lines, so a
	// fully delivered PO can never linger OPEN.
	if po.Status == models.POOpen {
		complete := true
		for i := range po.Items {
			if po.Items[i].TotalDelivered != po.Items[i].OrderedQty {
				complete = false
				break
			}
		}
		if complete {
			now := time.Now().UTC()
			po.Status = models.POClosed
			po.ClosedAt = &now
		}
	}

	cp := *d
	cp.Items = append([]models.DeliveryItem(nil), d.Items...)
	s.deliveries[poID] = append(s.deliveries[poID], cp)
	s.appendEntry(entry)
	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, poID string) ([]models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]models.Delivery{}, s.deliveries[poID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveredDate.Before(out[j].DeliveredDate) })
	return out, nil
}

func (s *Store) History(ctx context.Context, subjectID string) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.AuditEntry{}
	for _, entry := range s.audit {
		if entry.SubjectID == subjectID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return store.ErrDuplicate
	}
	cp := *user
	s.users[user.Email] = &cp
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}
