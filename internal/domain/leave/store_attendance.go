package leave

import (
	"context"
	"time"
)

func (s *Store) UpsertAttendance(ctx context.Context, rec AttendanceRecord) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO attendance_records (employee_id, organization_id, date, status, notes, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (employee_id, date) DO UPDATE
      SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
  `, rec.EmployeeID, rec.OrganizationID, rec.Date, rec.Status, rec.Notes, rec.UpdatedAt)
	return err
}

func (s *Store) ListAttendance(ctx context.Context, orgID, employeeID string, from, to time.Time) ([]AttendanceRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, organization_id, date, status, notes, updated_at
    FROM attendance_records
    WHERE organization_id = $1 AND employee_id = $2 AND date BETWEEN $3 AND $4
    ORDER BY date
  `, orgID, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AttendanceRecord, 0)
	for rows.Next() {
		var rec AttendanceRecord
		if err := rows.Scan(&rec.EmployeeID, &rec.OrganizationID, &rec.Date, &rec.Status, &rec.Notes, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
