package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertAuditEvent(ctx context.Context, evt Event) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *mockStore) CountAuditEvents(ctx context.Context, orgID string, filter Filter) (int, error) {
	args := m.Called(ctx, orgID, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListAuditEvents(ctx context.Context, orgID string, filter Filter, limit, offset int) ([]Event, error) {
	args := m.Called(ctx, orgID, filter, limit, offset)
	items, _ := args.Get(0).([]Event)
	return items, args.Error(1)
}

func TestRecordMarshalsSnapshots(t *testing.T) {
	store := &mockStore{}
	svc := New(store)

	var got Event
	store.On("InsertAuditEvent", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(Event)
	}).Return(nil)

	err := svc.Record(context.Background(), "org-1", "user-1", ActionBalanceAdjust, "leave_balance", "bal-1",
		"req-1", "10.0.0.1", map[string]string{"current": "12"}, map[string]string{"current": "10"})
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, ActionBalanceAdjust, got.Action)
	assert.Equal(t, "bal-1", got.EntityID)
	assert.JSONEq(t, `{"current":"12"}`, string(got.Before))
	assert.JSONEq(t, `{"current":"10"}`, string(got.After))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecordWithoutSnapshots(t *testing.T) {
	store := &mockStore{}
	svc := New(store)

	store.On("InsertAuditEvent", mock.Anything, mock.MatchedBy(func(evt Event) bool {
		return evt.Before == nil && evt.After == nil
	})).Return(nil).Once()

	require.NoError(t, svc.Record(context.Background(), "org-1", "user-1", ActionPolicyDelete, "leave_policy", "p-1", "", "", nil, nil))
	store.AssertExpectations(t)
}

func TestRecordRejectsUnmarshalableSnapshot(t *testing.T) {
	store := &mockStore{}
	svc := New(store)

	err := svc.Record(context.Background(), "org-1", "user-1", ActionPolicyUpdate, "leave_policy", "p-1", "", "", nil, make(chan int))
	assert.Error(t, err)
	store.AssertNotCalled(t, "InsertAuditEvent", mock.Anything, mock.Anything)
}
