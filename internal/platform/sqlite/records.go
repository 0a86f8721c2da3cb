package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/notifications"
)

func (s *Store) CreateNotification(ctx context.Context, n notifications.Notification) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO notifications (id, organization_id, user_id, type, title, body, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, n.ID, n.OrganizationID, n.UserID, n.Type, n.Title, n.Body, ts(n.CreatedAt))
	return err
}

func (s *Store) ListNotifications(ctx context.Context, orgID, userID string, limit, offset int) ([]notifications.Notification, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, organization_id, user_id, type, title, body, read_at, created_at
		FROM notifications
		WHERE organization_id = ? AND user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, orgID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []notifications.Notification{}
	for rows.Next() {
		var (
			n         notifications.Notification
			readAt    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.UserID, &n.Type, &n.Title, &n.Body, &readAt, &createdAt); err != nil {
			return nil, err
		}
		n.ReadAt = parseNullTS(readAt)
		n.CreatedAt = parseTS(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, orgID, userID string) (int, error) {
	var total int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(1) FROM notifications WHERE organization_id = ? AND user_id = ?",
		orgID, userID).Scan(&total)
	return total, err
}

func (s *Store) MarkRead(ctx context.Context, orgID, userID, notificationID string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE organization_id = ? AND user_id = ? AND id = ?
	`, ts(at), orgID, userID, notificationID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (s *Store) InsertAuditEvent(ctx context.Context, evt audit.Event) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_events (id, organization_id, actor_user_id, action, entity_type, entity_id,
			before_json, after_json, request_id, ip, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, evt.ID, evt.OrganizationID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID,
		nullString(string(evt.Before)), nullString(string(evt.After)), evt.RequestID, evt.IP, ts(evt.CreatedAt))
	return err
}

func auditWhere(orgID string, filter audit.Filter) (string, []any) {
	where := " FROM audit_events WHERE organization_id = ?"
	args := []any{orgID}
	if filter.Action != "" {
		where += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		where += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	if filter.ActorUser != "" {
		where += " AND actor_user_id = ?"
		args = append(args, filter.ActorUser)
	}
	return where, args
}

func (s *Store) CountAuditEvents(ctx context.Context, orgID string, filter audit.Filter) (int, error) {
	where, args := auditWhere(orgID, filter)
	var total int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(1)"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) ListAuditEvents(ctx context.Context, orgID string, filter audit.Filter, limit, offset int) ([]audit.Event, error) {
	where, args := auditWhere(orgID, filter)
	rows, err := s.q.QueryContext(ctx, `SELECT id, organization_id, actor_user_id, action, entity_type, entity_id,
		COALESCE(request_id, ''), COALESCE(ip, ''), created_at, before_json, after_json`+where+
		" ORDER BY created_at DESC LIMIT ? OFFSET ?", append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []audit.Event{}
	for rows.Next() {
		var (
			evt           audit.Event
			createdAt     string
			before, after sql.NullString
		)
		if err := rows.Scan(&evt.ID, &evt.OrganizationID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID,
			&evt.RequestID, &evt.IP, &createdAt, &before, &after); err != nil {
			return nil, err
		}
		evt.CreatedAt = parseTS(createdAt)
		if before.Valid {
			evt.Before = []byte(before.String)
		}
		if after.Valid {
			evt.After = []byte(after.String)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *Store) StartJobRun(ctx context.Context, id, orgID, jobType string, startedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO job_runs (id, organization_id, job_type, status, started_at) VALUES (?,?,?,?,?)
	`, id, orgID, jobType, "running", ts(startedAt))
	return err
}

func (s *Store) FinishJobRun(ctx context.Context, id, status string, details []byte, completedAt time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE job_runs SET status = ?, details_json = ?, completed_at = ? WHERE id = ?
	`, status, string(details), ts(completedAt), id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("job run %s not found", id)
	}
	return nil
}
