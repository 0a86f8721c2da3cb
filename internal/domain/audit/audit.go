package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionPolicyCreate    = "leave_policy.create"
	ActionPolicyUpdate    = "leave_policy.update"
	ActionPolicyDelete    = "leave_policy.delete"
	ActionBalancesInit    = "leave_balance.initialize"
	ActionBalanceAdjust   = "leave_balance.adjust"
	ActionCarryForward    = "leave_balance.carry_forward"
	ActionRequestCreate   = "leave_request.create"
	ActionRequestReview   = "leave_request.review"
	ActionGrantCreate     = "comp_off_grant.create"
	ActionGrantApply      = "comp_off_grant.apply"
	ActionAccrualRun      = "leave_accrual.run"
	ActionNotificationAck = "notification.read"
)

type Event struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	ActorID        string          `json:"actorId"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entityType"`
	EntityID       string          `json:"entityId"`
	RequestID      string          `json:"requestId"`
	IP             string          `json:"ip"`
	CreatedAt      time.Time       `json:"createdAt"`
	Before         json.RawMessage `json:"before,omitempty"`
	After          json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorUser  string
}

type StoreAPI interface {
	InsertAuditEvent(ctx context.Context, evt Event) error
	CountAuditEvents(ctx context.Context, orgID string, filter Filter) (int, error)
	ListAuditEvents(ctx context.Context, orgID string, filter Filter, limit, offset int) ([]Event, error)
}

type Service struct {
	store StoreAPI
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Record(ctx context.Context, orgID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	evt := Event{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		RequestID:      requestID,
		IP:             ip,
		CreatedAt:      time.Now().UTC(),
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return err
		}
		evt.Before = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		evt.After = payload
	}
	return s.store.InsertAuditEvent(ctx, evt)
}

func (s *Service) Count(ctx context.Context, orgID string, filter Filter) (int, error) {
	return s.store.CountAuditEvents(ctx, orgID, filter)
}

func (s *Service) List(ctx context.Context, orgID string, filter Filter, limit, offset int) ([]Event, error) {
	return s.store.ListAuditEvents(ctx, orgID, filter, limit, offset)
}
