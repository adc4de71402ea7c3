package repo

import (
	"context"
	"database/sql"

	"propcheck/internal/domain"
)

const documentColumns = `id,org_id,COALESCE(entity_kind,''),COALESCE(entity_id,''),document_type,expiry_date,created_at`

func scanDocument(scan func(dest ...any) error) (domain.ComplianceDocument, error) {
	var d domain.ComplianceDocument
	var expiry sql.NullString
	err := scan(&d.ID, &d.OrgID, &d.EntityKind, &d.EntityID, &d.DocumentType, &expiry, &d.CreatedAt)
	if err != nil {
		return d, err
	}
	if expiry.Valid {
		d.ExpiryDate = &expiry.String
	}
	return d, nil
}

func (r Repo) InsertDocumentTx(ctx context.Context, tx *sql.Tx, d domain.ComplianceDocument) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO compliance_documents(id,org_id,entity_kind,entity_id,document_type,expiry_date,created_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.OrgID, nullable(string(d.EntityKind)), nullable(d.EntityID), d.DocumentType,
		nullableStringPtr(d.ExpiryDate), d.CreatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.ComplianceDocument, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM compliance_documents WHERE id=?`, id)
	d, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

// ListDocuments returns every document for an entity, newest first.
func (r Repo) ListDocuments(ctx context.Context, kind domain.EntityKind, entityID string) ([]domain.ComplianceDocument, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM compliance_documents
WHERE entity_kind=? AND entity_id=? ORDER BY created_at DESC, id DESC`, string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListLatestDocuments returns the authoritative document per type for an
// entity: max(created_at), ties broken by id. Older documents of the same
// type are historical and omitted.
func (r Repo) ListLatestDocuments(ctx context.Context, kind domain.EntityKind, entityID string) ([]domain.ComplianceDocument, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM compliance_documents d
WHERE d.entity_kind=? AND d.entity_id=? AND NOT EXISTS (
  SELECT 1 FROM compliance_documents n
  WHERE n.entity_kind=d.entity_kind AND n.entity_id=d.entity_id AND n.document_type=d.document_type
    AND (n.created_at > d.created_at OR (n.created_at = d.created_at AND n.id > d.id)))
ORDER BY d.document_type ASC`, string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// LatestDocumentByType returns the authoritative document of one type, or
// ErrNotFound when none exists.
func (r Repo) LatestDocumentByType(ctx context.Context, kind domain.EntityKind, entityID, documentType string) (domain.ComplianceDocument, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM compliance_documents
WHERE entity_kind=? AND entity_id=? AND document_type=?
ORDER BY created_at DESC, id DESC LIMIT 1`, string(kind), entityID, documentType)
	d, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func collectDocuments(rows *sql.Rows) ([]domain.ComplianceDocument, error) {
	var res []domain.ComplianceDocument
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
