package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"propcheck/internal/calendar"
	"propcheck/internal/config"
	"propcheck/internal/domain"
	"propcheck/internal/events"
	"propcheck/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

const (
	dateLayout = "2006-01-02"
)

// InitOrg seeds the org row and its config, with migrations already run.
func (e Engine) InitOrg(ctx context.Context, orgID, name, actorID string) error {
	if orgID == "" {
		return ValidationError{Field: "org_id", Reason: "required"}
	}
	if name == "" {
		name = "Default Org"
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureOrg(ctx, tx, orgID, name, now); err != nil {
		return fmt.Errorf("ensure org: %w", err)
	}
	if err := e.Repo.UpsertOrgConfigTx(ctx, tx, orgID, config.Default(orgID)); err != nil {
		return fmt.Errorf("seed org config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "org.init", orgID, "org", orgID, actorID, events.EventPayload{"name": name}); err != nil {
		return err
	}
	return tx.Commit()
}

// PropertyCreateOptions are parameters for creating a property.
type PropertyCreateOptions struct {
	ID      string
	OrgID   string
	Name    string
	Address string
	ActorID string
}

func (e Engine) CreateProperty(ctx context.Context, opts PropertyCreateOptions) (domain.Property, error) {
	if opts.Name == "" {
		return domain.Property{}, ValidationError{Field: "name", Reason: "required"}
	}
	if opts.OrgID == "" {
		return domain.Property{}, ValidationError{Field: "org_id", Reason: "required"}
	}
	p := domain.Property{
		ID:        orUUID(opts.ID),
		OrgID:     opts.OrgID,
		Name:      opts.Name,
		Address:   opts.Address,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Property{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPropertyTx(ctx, tx, p); err != nil {
		return domain.Property{}, fmt.Errorf("insert property: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "property.created", p.OrgID, "property", p.ID, opts.ActorID, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Property{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Property{}, err
	}
	return p, nil
}

// BlockCreateOptions are parameters for creating a block.
type BlockCreateOptions struct {
	ID      string
	OrgID   string
	Name    string
	ActorID string
}

func (e Engine) CreateBlock(ctx context.Context, opts BlockCreateOptions) (domain.Block, error) {
	if opts.Name == "" {
		return domain.Block{}, ValidationError{Field: "name", Reason: "required"}
	}
	if opts.OrgID == "" {
		return domain.Block{}, ValidationError{Field: "org_id", Reason: "required"}
	}
	b := domain.Block{
		ID:        orUUID(opts.ID),
		OrgID:     opts.OrgID,
		Name:      opts.Name,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Block{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertBlockTx(ctx, tx, b); err != nil {
		return domain.Block{}, fmt.Errorf("insert block: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "block.created", b.OrgID, "block", b.ID, opts.ActorID, events.EventPayload{"name": b.Name}); err != nil {
		return domain.Block{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Block{}, err
	}
	return b, nil
}

// TemplateCreateOptions are parameters for creating an inspection template.
type TemplateCreateOptions struct {
	ID      string
	OrgID   string
	Name    string
	Scope   domain.EntityKind
	ActorID string
}

func (e Engine) CreateTemplate(ctx context.Context, opts TemplateCreateOptions) (domain.InspectionTemplate, error) {
	if opts.Name == "" {
		return domain.InspectionTemplate{}, ValidationError{Field: "name", Reason: "required"}
	}
	if opts.OrgID == "" {
		return domain.InspectionTemplate{}, ValidationError{Field: "org_id", Reason: "required"}
	}
	if !opts.Scope.IsValid() {
		return domain.InspectionTemplate{}, ValidationError{Field: "scope", Reason: "must be property or block"}
	}
	t := domain.InspectionTemplate{
		ID:        orUUID(opts.ID),
		OrgID:     opts.OrgID,
		Name:      opts.Name,
		Scope:     opts.Scope,
		Active:    true,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.InspectionTemplate{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTemplateTx(ctx, tx, t); err != nil {
		return domain.InspectionTemplate{}, fmt.Errorf("insert template: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "template.created", t.OrgID, "template", t.ID, opts.ActorID, events.EventPayload{"name": t.Name, "scope": t.Scope.String()}); err != nil {
		return domain.InspectionTemplate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.InspectionTemplate{}, err
	}
	return t, nil
}

// UpdateTemplate renames or toggles a template. Scope is immutable once set.
func (e Engine) UpdateTemplate(ctx context.Context, id string, name *string, active *bool, actorID string) (domain.InspectionTemplate, error) {
	t, err := e.Repo.GetTemplate(ctx, id)
	if err != nil {
		return t, err
	}
	if name != nil && *name == "" {
		return t, ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if err := e.Repo.UpdateTemplate(ctx, id, name, active); err != nil {
		return t, err
	}
	return e.Repo.GetTemplate(ctx, id)
}

// InspectionCreateOptions are parameters for directly scheduling one
// inspection.
type InspectionCreateOptions struct {
	ID             string
	TemplateID     string
	EntityKind     domain.EntityKind
	EntityID       string
	InspectionType string
	ScheduledDate  string
	ActorID        string
}

func (e Engine) ScheduleInspection(ctx context.Context, opts InspectionCreateOptions) (domain.InspectionInstance, error) {
	if !opts.EntityKind.IsValid() {
		return domain.InspectionInstance{}, ValidationError{Field: "entity_kind", Reason: "must be property or block"}
	}
	if _, err := time.Parse(dateLayout, opts.ScheduledDate); err != nil {
		return domain.InspectionInstance{}, ValidationError{Field: "scheduled_date", Reason: "must be YYYY-MM-DD"}
	}
	if err := e.ensureInspectionType(opts.InspectionType); err != nil {
		return domain.InspectionInstance{}, err
	}
	tpl, err := e.Repo.GetTemplate(ctx, opts.TemplateID)
	if err != nil {
		return domain.InspectionInstance{}, err
	}
	if tpl.Scope != opts.EntityKind {
		return domain.InspectionInstance{}, ValidationError{Field: "template_id", Reason: fmt.Sprintf("template %s is scoped to %s", tpl.ID, tpl.Scope)}
	}
	ok, err := e.Repo.EntityExists(ctx, opts.EntityKind, opts.EntityID)
	if err != nil {
		return domain.InspectionInstance{}, err
	}
	if !ok {
		return domain.InspectionInstance{}, fmt.Errorf("%s %s: %w", opts.EntityKind, opts.EntityID, repo.ErrNotFound)
	}
	in := domain.InspectionInstance{
		ID:             orUUID(opts.ID),
		TemplateID:     opts.TemplateID,
		EntityKind:     opts.EntityKind,
		EntityID:       opts.EntityID,
		InspectionType: opts.InspectionType,
		ScheduledDate:  opts.ScheduledDate,
		Status:         domain.InspectionScheduled,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.InspectionInstance{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertInstanceTx(ctx, tx, in); err != nil {
		return domain.InspectionInstance{}, fmt.Errorf("insert inspection: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "inspection.created", tpl.OrgID, "inspection", in.ID, opts.ActorID, events.EventPayload{
		"template_id":    in.TemplateID,
		"entity_kind":    in.EntityKind.String(),
		"entity_id":      in.EntityID,
		"scheduled_date": in.ScheduledDate,
	}); err != nil {
		return domain.InspectionInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.InspectionInstance{}, err
	}
	return in, nil
}

func ensureInspectionTransition(oldStatus, newStatus domain.InspectionStatus) error {
	switch oldStatus {
	case domain.InspectionDraft:
		if newStatus == domain.InspectionScheduled {
			return nil
		}
	case domain.InspectionScheduled:
		if newStatus == domain.InspectionInProgress || newStatus == domain.InspectionCompleted {
			return nil
		}
	case domain.InspectionInProgress:
		if newStatus == domain.InspectionCompleted {
			return nil
		}
	}
	return ValidationError{Field: "status", Reason: fmt.Sprintf("invalid transition %s -> %s", oldStatus, newStatus)}
}

// SetInspectionStatus advances an instance's lifecycle. Reaching completed
// stamps the completion date with today's date.
func (e Engine) SetInspectionStatus(ctx context.Context, id string, status domain.InspectionStatus, actorID string) (domain.InspectionInstance, error) {
	if !status.IsValid() {
		return domain.InspectionInstance{}, ValidationError{Field: "status", Reason: "unknown status"}
	}
	in, err := e.Repo.GetInstance(ctx, id)
	if err != nil {
		return in, err
	}
	if err := ensureInspectionTransition(in.Status, status); err != nil {
		return in, err
	}
	var completed *string
	if status == domain.InspectionCompleted {
		d := e.now().UTC().Format(dateLayout)
		completed = &d
	}
	tpl, err := e.Repo.GetTemplate(ctx, in.TemplateID)
	if err != nil {
		return in, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return in, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateInstanceStatusTx(ctx, tx, id, status, completed); err != nil {
		return in, err
	}
	if err := e.Events.Append(ctx, tx, "inspection.status", tpl.OrgID, "inspection", id, actorID, events.EventPayload{
		"from": in.Status.String(),
		"to":   status.String(),
	}); err != nil {
		return in, err
	}
	if err := tx.Commit(); err != nil {
		return in, err
	}
	in.Status = status
	in.CompletedDate = completed
	return in, nil
}

// DocumentCreateOptions are parameters for registering a compliance document.
type DocumentCreateOptions struct {
	ID           string
	OrgID        string
	EntityKind   domain.EntityKind
	EntityID     string
	DocumentType string
	ExpiryDate   *string
	ActorID      string
}

func (e Engine) AddDocument(ctx context.Context, opts DocumentCreateOptions) (domain.ComplianceDocument, error) {
	if opts.DocumentType == "" {
		return domain.ComplianceDocument{}, ValidationError{Field: "document_type", Reason: "required"}
	}
	if opts.OrgID == "" {
		return domain.ComplianceDocument{}, ValidationError{Field: "org_id", Reason: "required"}
	}
	if opts.ExpiryDate != nil {
		if _, err := time.Parse(dateLayout, *opts.ExpiryDate); err != nil {
			return domain.ComplianceDocument{}, ValidationError{Field: "expiry_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	if opts.EntityID != "" {
		if !opts.EntityKind.IsValid() {
			return domain.ComplianceDocument{}, ValidationError{Field: "entity_kind", Reason: "must be property or block"}
		}
		ok, err := e.Repo.EntityExists(ctx, opts.EntityKind, opts.EntityID)
		if err != nil {
			return domain.ComplianceDocument{}, err
		}
		if !ok {
			return domain.ComplianceDocument{}, fmt.Errorf("%s %s: %w", opts.EntityKind, opts.EntityID, repo.ErrNotFound)
		}
	}
	d := domain.ComplianceDocument{
		ID:           orUUID(opts.ID),
		OrgID:        opts.OrgID,
		EntityKind:   opts.EntityKind,
		EntityID:     opts.EntityID,
		DocumentType: opts.DocumentType,
		ExpiryDate:   opts.ExpiryDate,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ComplianceDocument{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDocumentTx(ctx, tx, d); err != nil {
		return domain.ComplianceDocument{}, fmt.Errorf("insert document: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "document.added", d.OrgID, "document", d.ID, opts.ActorID, events.EventPayload{
		"document_type": d.DocumentType,
		"entity_kind":   d.EntityKind.String(),
		"entity_id":     d.EntityID,
	}); err != nil {
		return domain.ComplianceDocument{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ComplianceDocument{}, err
	}
	return d, nil
}

// Selection is one (template, month) cell a caller wants scheduled. Callers
// accumulate selections locally and submit them in one batch; the engine
// re-derives authoritative state from committed rows only.
type Selection struct {
	TemplateID string `json:"template_id"`
	MonthIndex int    `json:"month_index" minimum:"0" maximum:"11"`
}

// BulkScheduleOptions are parameters for the atomic bulk scheduler.
type BulkScheduleOptions struct {
	EntityKind     domain.EntityKind
	EntityID       string
	Year           int
	InspectionType string
	DayOfMonth     int
	Selections     []Selection
	ActorID        string
}

// BulkSchedule creates one inspection instance per selection as a single
// all-or-nothing unit. Any validation failure, including a collision with an
// instance committed by a concurrent request, rejects the entire batch with
// zero rows written. The "cell is empty" precondition is re-checked inside
// the write transaction, not only at request start.
func (e Engine) BulkSchedule(ctx context.Context, opts BulkScheduleOptions) (int, error) {
	if !opts.EntityKind.IsValid() {
		return 0, ValidationError{Field: "entity_kind", Reason: "must be property or block"}
	}
	if opts.Year < 1 || opts.Year > 9999 {
		return 0, ValidationError{Field: "year", Reason: "out of range"}
	}
	if len(opts.Selections) == 0 {
		return 0, ValidationError{Field: "selections", Reason: "at least one selection required"}
	}
	if err := e.ensureInspectionType(opts.InspectionType); err != nil {
		return 0, err
	}
	dayOfMonth := opts.DayOfMonth
	if dayOfMonth == 0 {
		dayOfMonth = 1
		if e.Config != nil && e.Config.Inspections.Defaults.DayOfMonth > 0 {
			dayOfMonth = e.Config.Inspections.Defaults.DayOfMonth
		}
	}
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return 0, ValidationError{Field: "day_of_month", Reason: "must be in 1..31"}
	}

	ok, err := e.Repo.EntityExists(ctx, opts.EntityKind, opts.EntityID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", opts.EntityKind, opts.EntityID, repo.ErrNotFound)
	}

	type cell struct {
		templateID string
		month      int
	}
	seen := map[cell]bool{}
	templates := map[string]domain.InspectionTemplate{}
	for _, sel := range opts.Selections {
		if sel.MonthIndex < 0 || sel.MonthIndex > 11 {
			return 0, ValidationError{Field: "month_index", Reason: fmt.Sprintf("%d out of range [0,11]", sel.MonthIndex)}
		}
		key := cell{sel.TemplateID, sel.MonthIndex}
		if seen[key] {
			return 0, ConflictError{TemplateID: sel.TemplateID, MonthIndex: sel.MonthIndex, Reason: "duplicate selection in request"}
		}
		seen[key] = true
		if _, ok := templates[sel.TemplateID]; ok {
			continue
		}
		tpl, err := e.Repo.GetTemplate(ctx, sel.TemplateID)
		if err != nil {
			return 0, fmt.Errorf("template %s: %w", sel.TemplateID, err)
		}
		if !tpl.Active {
			return 0, ValidationError{Field: "template_id", Reason: fmt.Sprintf("template %s is disabled", tpl.ID)}
		}
		if tpl.Scope != opts.EntityKind {
			return 0, ValidationError{Field: "template_id", Reason: fmt.Sprintf("template %s is scoped to %s", tpl.ID, tpl.Scope)}
		}
		templates[sel.TemplateID] = tpl
	}

	now := e.now().UTC().Format(time.RFC3339)
	orgID := ""
	for _, tpl := range templates {
		orgID = tpl.OrgID
		break
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	created := 0
	for _, sel := range opts.Selections {
		n, err := e.Repo.CountInstancesForMonthTx(ctx, tx, opts.EntityKind, opts.EntityID, sel.TemplateID, opts.Year, sel.MonthIndex)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, ConflictError{TemplateID: sel.TemplateID, MonthIndex: sel.MonthIndex, Reason: "month already has an inspection"}
		}
		day := dayOfMonth
		if last := daysInMonth(opts.Year, sel.MonthIndex); day > last {
			day = last
		}
		in := domain.InspectionInstance{
			ID:             uuid.New().String(),
			TemplateID:     sel.TemplateID,
			EntityKind:     opts.EntityKind,
			EntityID:       opts.EntityID,
			InspectionType: opts.InspectionType,
			ScheduledDate:  fmt.Sprintf("%04d-%02d-%02d", opts.Year, sel.MonthIndex+1, day),
			Status:         domain.InspectionScheduled,
			CreatedAt:      now,
		}
		if err := e.Repo.InsertInstanceTx(ctx, tx, in); err != nil {
			return 0, fmt.Errorf("insert inspection: %w", err)
		}
		created++
	}
	if err := e.Events.Append(ctx, tx, "schedule.bulk", orgID, opts.EntityKind.String(), opts.EntityID, opts.ActorID, events.EventPayload{
		"year":  opts.Year,
		"count": created,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// ComplianceReport computes the full per-year calendar report for one entity.
// Reads run in a read-only transaction so the instance set is one consistent
// snapshot; the result is derived and must be treated as stale after any
// write.
func (e Engine) ComplianceReport(ctx context.Context, kind domain.EntityKind, entityID string, year int) (calendar.Report, error) {
	if !kind.IsValid() {
		return calendar.Report{}, ValidationError{Field: "entity_kind", Reason: "must be property or block"}
	}
	if year < 1 || year > 9999 {
		return calendar.Report{}, ValidationError{Field: "year", Reason: "out of range"}
	}
	orgID, err := e.entityOrg(ctx, kind, entityID)
	if err != nil {
		return calendar.Report{}, err
	}
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return calendar.Report{}, err
	}
	defer tx.Rollback()
	templates, err := listTemplatesTx(ctx, tx, orgID, kind)
	if err != nil {
		return calendar.Report{}, err
	}
	instances, err := listInstancesTx(ctx, tx, kind, entityID, year)
	if err != nil {
		return calendar.Report{}, err
	}
	rep, err := calendar.BuildReport(templates, instances, year, e.now())
	if err != nil {
		return calendar.Report{}, fmt.Errorf("compute report: %w", err)
	}
	return rep, nil
}

// DocumentProjection is one document type's 12-month validity row.
type DocumentProjection struct {
	DocumentType string                     `json:"document_type"`
	Document     *domain.ComplianceDocument `json:"document,omitempty"`
	Months       [12]calendar.DocMonthCell  `json:"months"`
}

// ProjectDocuments projects every known document type for an entity across
// one year. The type universe is the org catalog plus any types actually
// present; per type, only the most recently created document counts.
func (e Engine) ProjectDocuments(ctx context.Context, kind domain.EntityKind, entityID string, year int) ([]DocumentProjection, error) {
	if !kind.IsValid() {
		return nil, ValidationError{Field: "entity_kind", Reason: "must be property or block"}
	}
	if year < 1 || year > 9999 {
		return nil, ValidationError{Field: "year", Reason: "out of range"}
	}
	ok, err := e.Repo.EntityExists(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, entityID, repo.ErrNotFound)
	}
	latest, err := e.Repo.ListLatestDocuments(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	byType := map[string]domain.ComplianceDocument{}
	var types []string
	for _, d := range latest {
		byType[d.DocumentType] = d
		types = append(types, d.DocumentType)
	}
	if e.Config != nil {
		for t := range e.Config.Documents.Catalog {
			if _, ok := byType[t]; !ok {
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	now := e.now()
	var res []DocumentProjection
	for _, t := range types {
		var doc *domain.ComplianceDocument
		if d, ok := byType[t]; ok {
			d := d
			doc = &d
		}
		months, err := calendar.ProjectExpiry(doc, year, now)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", t, err)
		}
		res = append(res, DocumentProjection{DocumentType: t, Document: doc, Months: months})
	}
	return res, nil
}

func (e Engine) ensureInspectionType(inspectionType string) error {
	if inspectionType == "" {
		return ValidationError{Field: "inspection_type", Reason: "required"}
	}
	if e.Config == nil || len(e.Config.Inspections.Catalog) == 0 {
		return nil
	}
	if _, ok := e.Config.Inspections.Catalog[inspectionType]; !ok {
		return ValidationError{Field: "inspection_type", Reason: fmt.Sprintf("unknown type %s", inspectionType)}
	}
	return nil
}

func (e Engine) entityOrg(ctx context.Context, kind domain.EntityKind, entityID string) (string, error) {
	switch kind {
	case domain.EntityProperty:
		p, err := e.Repo.GetProperty(ctx, entityID)
		if err != nil {
			return "", err
		}
		return p.OrgID, nil
	case domain.EntityBlock:
		b, err := e.Repo.GetBlock(ctx, entityID)
		if err != nil {
			return "", err
		}
		return b.OrgID, nil
	default:
		return "", ValidationError{Field: "entity_kind", Reason: "must be property or block"}
	}
}

func listTemplatesTx(ctx context.Context, tx *sql.Tx, orgID string, scope domain.EntityKind) ([]domain.InspectionTemplate, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id,org_id,name,scope,active,created_at FROM inspection_templates
WHERE org_id=? AND scope=? AND active=1 ORDER BY created_at ASC, id ASC`, orgID, string(scope))
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

func listInstancesTx(ctx context.Context, tx *sql.Tx, kind domain.EntityKind, entityID string, year int) ([]domain.InspectionInstance, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id,template_id,entity_kind,entity_id,inspection_type,scheduled_date,completed_date,status,created_at
FROM inspection_instances WHERE entity_kind=? AND entity_id=? AND scheduled_date >= ? AND scheduled_date < ?
ORDER BY scheduled_date ASC, id ASC`,
		string(kind), entityID, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-01-01", year+1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InspectionInstance
	for rows.Next() {
		var in domain.InspectionInstance
		var completed sql.NullString
		if err := rows.Scan(&in.ID, &in.TemplateID, &in.EntityKind, &in.EntityID, &in.InspectionType,
			&in.ScheduledDate, &completed, &in.Status, &in.CreatedAt); err != nil {
			return nil, err
		}
		if completed.Valid {
			in.CompletedDate = &completed.String
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

// --- helpers ---

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func daysInMonth(year, monthIndex int) int {
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
