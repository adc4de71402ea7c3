package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"propcheck/internal/config"
	"propcheck/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) EnsureOrg(ctx context.Context, tx *sql.Tx, id, name, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO orgs(id,name,created_at) VALUES (?,?,?)`, id, name, now)
	return err
}

func (r Repo) GetOrg(ctx context.Context, id string) (string, error) {
	var name string
	err := r.DB.QueryRowContext(ctx, `SELECT name FROM orgs WHERE id=?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return name, err
}

// --- properties ---

func (r Repo) InsertPropertyTx(ctx context.Context, tx *sql.Tx, p domain.Property) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO properties(id,org_id,name,address,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, nullable(p.Address), p.CreatedAt)
	return err
}

func (r Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	var p domain.Property
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,COALESCE(address,''),created_at FROM properties WHERE id=?`, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.Address, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProperties(ctx context.Context, orgID string) ([]domain.Property, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,COALESCE(address,''),created_at FROM properties WHERE org_id=? ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Property
	for rows.Next() {
		var p domain.Property
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Address, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- blocks ---

func (r Repo) InsertBlockTx(ctx context.Context, tx *sql.Tx, b domain.Block) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO blocks(id,org_id,name,created_at) VALUES (?,?,?,?)`,
		b.ID, b.OrgID, b.Name, b.CreatedAt)
	return err
}

func (r Repo) GetBlock(ctx context.Context, id string) (domain.Block, error) {
	var b domain.Block
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,created_at FROM blocks WHERE id=?`, id).
		Scan(&b.ID, &b.OrgID, &b.Name, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) ListBlocks(ctx context.Context, orgID string) ([]domain.Block, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,created_at FROM blocks WHERE org_id=? ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Block
	for rows.Next() {
		var b domain.Block
		if err := rows.Scan(&b.ID, &b.OrgID, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// EntityExists resolves an entity id against the table its kind names.
func (r Repo) EntityExists(ctx context.Context, kind domain.EntityKind, id string) (bool, error) {
	var table string
	switch kind {
	case domain.EntityProperty:
		table = "properties"
	case domain.EntityBlock:
		table = "blocks"
	default:
		return false, fmt.Errorf("unknown entity kind %q", kind)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id=? LIMIT 1`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// --- templates ---

func (r Repo) InsertTemplateTx(ctx context.Context, tx *sql.Tx, t domain.InspectionTemplate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO inspection_templates(id,org_id,name,scope,active,created_at) VALUES (?,?,?,?,?,?)`,
		t.ID, t.OrgID, t.Name, string(t.Scope), boolToInt(t.Active), t.CreatedAt)
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.InspectionTemplate, error) {
	var t domain.InspectionTemplate
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,scope,active,created_at FROM inspection_templates WHERE id=?`, id).
		Scan(&t.ID, &t.OrgID, &t.Name, &t.Scope, &active, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	t.Active = active != 0
	return t, err
}

// ListTemplates returns an org's templates, optionally restricted to active
// ones and to a scope.
func (r Repo) ListTemplates(ctx context.Context, orgID string, scope domain.EntityKind, activeOnly bool) ([]domain.InspectionTemplate, error) {
	clauses := []string{"org_id=?"}
	args := []any{orgID}
	if scope != "" {
		clauses = append(clauses, "scope=?")
		args = append(args, string(scope))
	}
	if activeOnly {
		clauses = append(clauses, "active=1")
	}
	query := `SELECT id,org_id,name,scope,active,created_at FROM inspection_templates WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InspectionTemplate
	for rows.Next() {
		var t domain.InspectionTemplate
		var active int
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &t.Scope, &active, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Active = active != 0
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpdateTemplate applies name/active changes; templates are never deleted.
func (r Repo) UpdateTemplate(ctx context.Context, id string, name *string, active *bool) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if active != nil {
		fields = append(fields, "active=?")
		args = append(args, boolToInt(*active))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE inspection_templates SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- org config ---

func (r Repo) UpsertOrgConfig(ctx context.Context, orgID string, cfg *config.Config) error {
	return upsertOrgConfig(ctx, r.DB, nil, orgID, cfg)
}

func (r Repo) UpsertOrgConfigTx(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	return upsertOrgConfig(ctx, nil, tx, orgID, cfg)
}

func upsertOrgConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, orgID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Org.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO org_configs(org_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(org_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, orgID, string(payload), now, now)
	return err
}

func (r Repo) GetOrgConfig(ctx context.Context, orgID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM org_configs WHERE org_id=?`, orgID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Org.ID == "" {
		cfg.Org.ID = orgID
	}
	return &cfg, cfg.Validate()
}

// --- events ---

func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64, orgID string) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(org_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json
FROM events WHERE id > ? AND (org_id=? OR org_id IS NULL) ORDER BY id ASC LIMIT ?`, afterID, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OrgID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) TailEvents(ctx context.Context, orgID string, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(org_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json
FROM events WHERE org_id=? OR org_id IS NULL ORDER BY id DESC LIMIT ?`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OrgID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the highest event id for an org, 0 when empty.
func (r Repo) LatestEventID(ctx context.Context, orgID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE org_id=? OR org_id IS NULL`, orgID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
