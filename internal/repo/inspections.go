package repo

import (
	"context"
	"database/sql"
	"fmt"

	"propcheck/internal/domain"
)

func scanInstance(scan func(dest ...any) error) (domain.InspectionInstance, error) {
	var in domain.InspectionInstance
	var completed sql.NullString
	err := scan(&in.ID, &in.TemplateID, &in.EntityKind, &in.EntityID, &in.InspectionType,
		&in.ScheduledDate, &completed, &in.Status, &in.CreatedAt)
	if err != nil {
		return in, err
	}
	if completed.Valid {
		in.CompletedDate = &completed.String
	}
	return in, nil
}

const instanceColumns = `id,template_id,entity_kind,entity_id,inspection_type,scheduled_date,completed_date,status,created_at`

func (r Repo) InsertInstanceTx(ctx context.Context, tx *sql.Tx, in domain.InspectionInstance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO inspection_instances(`+instanceColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		in.ID, in.TemplateID, string(in.EntityKind), in.EntityID, in.InspectionType,
		in.ScheduledDate, nullableStringPtr(in.CompletedDate), string(in.Status), in.CreatedAt)
	return err
}

func (r Repo) GetInstance(ctx context.Context, id string) (domain.InspectionInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM inspection_instances WHERE id=?`, id)
	in, err := scanInstance(row.Scan)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	return in, err
}

// ListInstancesByEntity returns an entity's instances, restricted to one
// scheduled year when year > 0.
func (r Repo) ListInstancesByEntity(ctx context.Context, kind domain.EntityKind, entityID string, year int) ([]domain.InspectionInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM inspection_instances WHERE entity_kind=? AND entity_id=?`
	args := []any{string(kind), entityID}
	if year > 0 {
		query += ` AND scheduled_date >= ? AND scheduled_date < ?`
		args = append(args, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-01-01", year+1))
	}
	query += ` ORDER BY scheduled_date ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InspectionInstance
	for rows.Next() {
		in, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

// CountInstancesForMonthTx counts committed instances for one
// (entity, template, year, month) cell inside the caller's transaction. The
// bulk scheduler uses it to re-validate the empty-cell precondition at write
// time rather than trusting request-start state.
func (r Repo) CountInstancesForMonthTx(ctx context.Context, tx *sql.Tx, kind domain.EntityKind, entityID, templateID string, year, monthIndex int) (int, error) {
	start := fmt.Sprintf("%04d-%02d-01", year, monthIndex+1)
	var end string
	if monthIndex == 11 {
		end = fmt.Sprintf("%04d-01-01", year+1)
	} else {
		end = fmt.Sprintf("%04d-%02d-01", year, monthIndex+2)
	}
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspection_instances
WHERE entity_kind=? AND entity_id=? AND template_id=? AND scheduled_date >= ? AND scheduled_date < ?`,
		string(kind), entityID, templateID, start, end).Scan(&n)
	return n, err
}

func (r Repo) UpdateInstanceStatusTx(ctx context.Context, tx *sql.Tx, id string, status domain.InspectionStatus, completedDate *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE inspection_instances SET status=?, completed_date=? WHERE id=?`,
		string(status), nullableStringPtr(completedDate), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
