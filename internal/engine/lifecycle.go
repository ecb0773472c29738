package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"
)

// requestRetries bounds the read-mutate-commit loop when concurrent commits
// keep bumping the request's version between our read and write.
const requestRetries = 8

// Decision is a reviewer's verdict on one pending item.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// NewItemInput describes one BOQ line on creation or draft edit.
type NewItemInput struct {
	ResourceType models.ResourceType `json:"resourceType" binding:"required"`
	Name         string              `json:"name" binding:"required"`
	Quantity     float64             `json:"quantity" binding:"required"`
	Unit         string              `json:"unit" binding:"required"`
	RateEstimate float64             `json:"rateEstimate"`
}

// CreateRequestInput is the payload for a new draft request. The duplicate
// fields come from the external detection service and are stored read-only.
type CreateRequestInput struct {
	ProjectID            string         `json:"projectID" binding:"required"`
	Title                string         `json:"title" binding:"required"`
	Priority             string         `json:"priority"`
	Items                []NewItemInput `json:"items" binding:"dive"`
	IsDuplicateFlagged   bool           `json:"isDuplicateFlagged"`
	DuplicateExplanation string         `json:"duplicateExplanation"`
}

// ResubmitItemInput carries the edited fields for a rejected item.
type ResubmitItemInput struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity" binding:"required"`
	Unit         string  `json:"unit" binding:"required"`
	RateEstimate float64 `json:"rateEstimate"`
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.New().String()[:8]))
}

func validateItemInput(in NewItemInput) error {
	if in.ResourceType != models.ResourceMaterial && in.ResourceType != models.ResourceLabour {
		return newError(KindValidation, "item", "", "", "create", fmt.Sprintf("unknown resource type %q", in.ResourceType))
	}
	if in.Name == "" {
		return newError(KindValidation, "item", "", "", "create", "item name is required")
	}
	if in.Quantity <= 0 {
		return newError(KindValidation, "item", "", "", "create", "quantity must be positive")
	}
	if in.RateEstimate < 0 {
		return newError(KindValidation, "item", "", "", "create", "rate estimate cannot be negative")
	}
	return nil
}

func buildItem(in NewItemInput) models.RequestItem {
	item := models.RequestItem{
		ItemID:       newID("ITM"),
		ResourceType: in.ResourceType,
		Name:         in.Name,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		RateEstimate: in.RateEstimate,
		Status:       models.ItemPending,
	}
	item.TotalEstimate = ItemTotal(item.Quantity, item.RateEstimate)
	return item
}

// requireOwner lets only the creator (or superadmin) touch a request through
// requester operations.
func requireOwner(actor models.Actor, req *models.Request, action string) error {
	if actor.Role == models.RoleSuperadmin || actor.UserID == req.CreatedBy {
		return nil
	}
	return newError(KindUnauthorized, "request", req.RequestID, string(req.Status), action, "only the request creator may perform this operation")
}

// CreateRequest creates a new DRAFT request with its initial items.
func (e *Engine) CreateRequest(ctx context.Context, actor models.Actor, in CreateRequestInput) (*models.Request, error) {
	if err := e.requireRole(actor, "createRequest", models.RoleRequester); err != nil {
		return nil, err
	}
	if in.ProjectID == "" || in.Title == "" {
		return nil, newError(KindValidation, "request", "", "", "create", "projectID and title are required")
	}
	priority := in.Priority
	if priority == "" {
		priority = "MEDIUM"
	}

	req := &models.Request{
		RequestID:            newID("REQ"),
		ProjectID:            in.ProjectID,
		Title:                in.Title,
		Priority:             priority,
		RevisionNumber:       1,
		IsDuplicateFlagged:   in.IsDuplicateFlagged,
		DuplicateExplanation: in.DuplicateExplanation,
		CreatedBy:            actor.UserID,
		CreatedAt:            time.Now().UTC(),
	}
	for _, itemIn := range in.Items {
		if err := validateItemInput(itemIn); err != nil {
			return nil, err
		}
		req.Items = append(req.Items, buildItem(itemIn))
	}
	refreshDerived(req)

	entry := newAuditEntry(models.SubjectRequest, req.RequestID, "", models.ActionCreated, actor, "", string(req.Status))
	if err := e.store.InsertRequest(ctx, req, entry); err != nil {
		return nil, newError(KindInternal, "request", req.RequestID, "", "create", err.Error())
	}

	e.log.Info().Str("requestID", req.RequestID).Str("projectID", req.ProjectID).Int("items", len(req.Items)).Msg("request created")
	return req, nil
}

// AddItem appends a new item to a DRAFT request.
func (e *Engine) AddItem(ctx context.Context, actor models.Actor, requestID string, in NewItemInput) (*models.Request, error) {
	if err := e.requireRole(actor, "addItem", models.RoleRequester); err != nil {
		return nil, err
	}
	if err := validateItemInput(in); err != nil {
		return nil, err
	}
	item := buildItem(in)

	return e.mutateRequest(ctx, requestID, "addItem", func(req *models.Request) (*models.AuditEntry, error) {
		if err := requireOwner(actor, req, "addItem"); err != nil {
			return nil, err
		}
		if req.Status != models.RequestDraft {
			return nil, newError(KindInvalidTransition, "request", requestID, string(req.Status), "addItem", "items can only be added while the request is a draft")
		}
		req.Items = append(req.Items, item)
		refreshDerived(req)
		return newAuditEntry(models.SubjectRequestItem, requestID, item.ItemID, models.ActionUpdated, actor, "", string(req.Status)), nil
	})
}

// UpdateItem edits an item on a DRAFT request; quantity/rate edits recompute
// the derived total through the single derivation function.
func (e *Engine) UpdateItem(ctx context.Context, actor models.Actor, requestID, itemID string, in NewItemInput) (*models.Request, error) {
	if err := e.requireRole(actor, "updateItem", models.RoleRequester); err != nil {
		return nil, err
	}
	if err := validateItemInput(in); err != nil {
		return nil, err
	}

	return e.mutateRequest(ctx, requestID, "updateItem", func(req *models.Request) (*models.AuditEntry, error) {
		if err := requireOwner(actor, req, "updateItem"); err != nil {
			return nil, err
		}
		if req.Status != models.RequestDraft {
			return nil, newError(KindInvalidTransition, "request", requestID, string(req.Status), "updateItem", "items can only be edited while the request is a draft")
		}
		item := req.Item(itemID)
		if item == nil {
			return nil, newError(KindNotFound, "item", itemID, "", "updateItem", "no such item on this request")
		}

		item.ResourceType = in.ResourceType
		item.Name = in.Name
		item.Quantity = in.Quantity
		item.Unit = in.Unit
		item.RateEstimate = in.RateEstimate
		refreshDerived(req)
		return newAuditEntry(models.SubjectRequestItem, requestID, itemID, models.ActionUpdated, actor, "", string(req.Status)), nil
	})
}

// Submit moves a DRAFT request with at least one item into review: every item
// becomes PENDING and the aggregate goes PENDING.
func (e *Engine) Submit(ctx context.Context, actor models.Actor, requestID string) (*models.Request, error) {
	if err := e.requireRole(actor, "submit", models.RoleRequester); err != nil {
		return nil, err
	}

	req, err := e.mutateRequest(ctx, requestID, "submit", func(req *models.Request) (*models.AuditEntry, error) {
		if err := requireOwner(actor, req, "submit"); err != nil {
			return nil, err
		}
		if req.Status != models.RequestDraft {
			return nil, newError(KindInvalidTransition, "request", requestID, string(req.Status), "submit", "request has already been submitted")
		}
		if len(req.Items) == 0 {
			return nil, newError(KindValidation, "request", requestID, string(req.Status), "submit", "cannot submit a request without items")
		}

		now := time.Now().UTC()
		req.SubmittedAt = &now
		for i := range req.Items {
			req.Items[i].Status = models.ItemPending
		}
		refreshDerived(req)
		return newAuditEntry(models.SubjectRequest, requestID, "", models.ActionSubmitted, actor, "", string(req.Status)), nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("requestID", requestID).Float64("totalValue", req.TotalValue).Msg("request submitted")
	e.notifyAll("request_submitted", req)
	return req, nil
}

// DecideItem records a reviewer's verdict on one PENDING item. Losing a race
// to another reviewer of the same item fails with ItemAlreadyDecided, never a
// silent overwrite; races on sibling items are retried and both decisions
// land.
func (e *Engine) DecideItem(ctx context.Context, actor models.Actor, requestID, itemID string, decision Decision, comment string) (*models.Request, error) {
	if err := e.requireRole(actor, "decideItem", models.RoleReviewer); err != nil {
		return nil, err
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, newError(KindValidation, "item", itemID, "", "decideItem", fmt.Sprintf("unknown decision %q", decision))
	}
	if decision == DecisionReject && strings.TrimSpace(comment) == "" {
		return nil, newError(KindValidation, "item", itemID, "", "decideItem", "rejection requires a non-empty comment")
	}

	req, err := e.mutateRequest(ctx, requestID, "decideItem", func(req *models.Request) (*models.AuditEntry, error) {
		if req.Status == models.RequestDraft {
			return nil, newError(KindInvalidTransition, "request", requestID, string(req.Status), "decideItem", "request has not been submitted for review")
		}
		item := req.Item(itemID)
		if item == nil {
			return nil, newError(KindNotFound, "item", itemID, "", "decideItem", "no such item on this request")
		}
		if item.Status != models.ItemPending {
			return nil, newError(KindItemAlreadyDecided, "item", itemID, string(item.Status), "decideItem", "item has already been decided")
		}

		action := models.ActionMaterialApproved
		if decision == DecisionApprove {
			item.Status = models.ItemApproved
		} else {
			item.Status = models.ItemRejected
			item.RejectionComment = comment
			action = models.ActionMaterialRejected
		}
		refreshDerived(req)
		return newAuditEntry(models.SubjectRequestItem, requestID, itemID, action, actor, comment, string(item.Status)), nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("requestID", requestID).Str("itemID", itemID).Str("decision", string(decision)).Str("aggregate", string(req.Status)).Msg("item decided")
	e.notifyUser(req.CreatedBy, "item_decided", req)
	return req, nil
}

// ResubmitItem applies edited fields to a REJECTED item and puts it back into
// review. Decided siblings are never touched.
func (e *Engine) ResubmitItem(ctx context.Context, actor models.Actor, requestID, itemID string, in ResubmitItemInput) (*models.Request, error) {
	if err := e.requireRole(actor, "resubmitItem", models.RoleRequester); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, newError(KindValidation, "item", itemID, "", "resubmitItem", "quantity must be positive")
	}
	if in.RateEstimate < 0 {
		return nil, newError(KindValidation, "item", itemID, "", "resubmitItem", "rate estimate cannot be negative")
	}

	req, err := e.mutateRequest(ctx, requestID, "resubmitItem", func(req *models.Request) (*models.AuditEntry, error) {
		if err := requireOwner(actor, req, "resubmitItem"); err != nil {
			return nil, err
		}
		item := req.Item(itemID)
		if item == nil {
			return nil, newError(KindNotFound, "item", itemID, "", "resubmitItem", "no such item on this request")
		}
		if item.Status != models.ItemRejected {
			return nil, newError(KindInvalidTransition, "item", itemID, string(item.Status), "resubmitItem", "only rejected items can be resubmitted")
		}

		if in.Name != "" {
			item.Name = in.Name
		}
		item.Quantity = in.Quantity
		item.Unit = in.Unit
		item.RateEstimate = in.RateEstimate
		item.Status = models.ItemPending
		item.RejectionComment = ""
		req.RevisionNumber++
		refreshDerived(req)
		return newAuditEntry(models.SubjectRequestItem, requestID, itemID, models.ActionResubmitted, actor, "", string(req.Status)), nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("requestID", requestID).Str("itemID", itemID).Int("revision", req.RevisionNumber).Msg("item resubmitted")
	e.notifyAll("item_resubmitted", req)
	return req, nil
}

// GetRequest returns one request by ID.
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	return e.loadRequest(ctx, requestID, "get")
}

// ListRequests returns requests matching the filter, oldest first.
func (e *Engine) ListRequests(ctx context.Context, f store.RequestFilter) ([]models.Request, error) {
	requests, err := e.store.ListRequests(ctx, f)
	if err != nil {
		return nil, newError(KindInternal, "request", "", "", "list", err.Error())
	}
	return requests, nil
}

func (e *Engine) loadRequest(ctx context.Context, requestID, action string) (*models.Request, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "request", requestID, "", action, "request not found")
	}
	if err != nil {
		return nil, newError(KindInternal, "request", requestID, "", action, err.Error())
	}
	return req, nil
}

// mutateRequest runs the read-mutate-commit cycle against the version CAS. A
// version miss means some other commit landed first; the mutation re-runs
// against a fresh read, so its own precondition checks decide whether the
// operation still applies (a re-decided item reads as ItemAlreadyDecided, not
// as a bare conflict).
func (e *Engine) mutateRequest(ctx context.Context, requestID, action string, mutate func(req *models.Request) (*models.AuditEntry, error)) (*models.Request, error) {
	for attempt := 0; attempt <= requestRetries; attempt++ {
		req, err := e.loadRequest(ctx, requestID, action)
		if err != nil {
			return nil, err
		}
		entry, err := mutate(req)
		if err != nil {
			return nil, err
		}

		err = e.store.UpdateRequest(ctx, req, entry)
		switch {
		case errors.Is(err, store.ErrConflict):
			continue
		case errors.Is(err, store.ErrNotFound):
			return nil, newError(KindNotFound, "request", requestID, "", action, "request not found")
		case err != nil:
			return nil, newError(KindInternal, "request", requestID, "", action, err.Error())
		}
		return req, nil
	}
	return nil, newError(KindConflict, "request", requestID, "", action, "concurrent operations kept changing this request; retry")
}
