package engine_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"propcheck/internal/calendar"
	"propcheck/internal/config"
	"propcheck/internal/db"
	"propcheck/internal/domain"
	"propcheck/internal/engine"
	"propcheck/internal/migrate"
	"propcheck/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("org-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.InitOrg(ctx, "org-1", "Test Org", "tester"); err != nil {
		t.Fatalf("init org: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func mustProperty(t *testing.T, env testEnv) domain.Property {
	t.Helper()
	p, err := env.Engine.CreateProperty(env.Ctx, engine.PropertyCreateOptions{
		OrgID: "org-1", Name: "12 High Street", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	return p
}

func mustTemplate(t *testing.T, env testEnv, name string) domain.InspectionTemplate {
	t.Helper()
	tpl, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{
		OrgID: "org-1", Name: name, Scope: domain.EntityProperty, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func TestBulkScheduleCreatesInstances(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tplA := mustTemplate(t, env, "Fire doors")
	tplB := mustTemplate(t, env, "Smoke alarms")

	count, err := env.Engine.BulkSchedule(env.Ctx, engine.BulkScheduleOptions{
		EntityKind:     domain.EntityProperty,
		EntityID:       prop.ID,
		Year:           2024,
		InspectionType: "routine",
		Selections: []engine.Selection{
			{TemplateID: tplA.ID, MonthIndex: 7},
			{TemplateID: tplA.ID, MonthIndex: 8},
			{TemplateID: tplB.ID, MonthIndex: 7},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("bulk schedule: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 created, got %d", count)
	}
	instances, err := env.Engine.Repo.ListInstancesByEntity(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(instances))
	}
	if instances[0].ScheduledDate != "2024-08-01" {
		t.Fatalf("expected first-of-month scheduling, got %s", instances[0].ScheduledDate)
	}
}

func TestBulkScheduleDuplicateSelectionRejectsBatch(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")

	_, err := env.Engine.BulkSchedule(env.Ctx, engine.BulkScheduleOptions{
		EntityKind:     domain.EntityProperty,
		EntityID:       prop.ID,
		Year:           2024,
		InspectionType: "routine",
		Selections: []engine.Selection{
			{TemplateID: tpl.ID, MonthIndex: 2},
			{TemplateID: tpl.ID, MonthIndex: 2},
		},
		ActorID: "tester",
	})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	instances, err := env.Engine.Repo.ListInstancesByEntity(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(instances) != 0 {
		t.Fatalf("expected zero instances after rejected batch, got %d", len(instances))
	}
}

func TestBulkScheduleCollisionWithExistingRejectsBatch(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")

	if _, err := env.Engine.ScheduleInspection(env.Ctx, engine.InspectionCreateOptions{
		TemplateID:     tpl.ID,
		EntityKind:     domain.EntityProperty,
		EntityID:       prop.ID,
		InspectionType: "routine",
		ScheduledDate:  "2024-03-15",
		ActorID:        "tester",
	}); err != nil {
		t.Fatalf("schedule inspection: %v", err)
	}

	// The batch mixes a fresh cell with a colliding one: nothing commits.
	_, err := env.Engine.BulkSchedule(env.Ctx, engine.BulkScheduleOptions{
		EntityKind:     domain.EntityProperty,
		EntityID:       prop.ID,
		Year:           2024,
		InspectionType: "routine",
		Selections: []engine.Selection{
			{TemplateID: tpl.ID, MonthIndex: 6},
			{TemplateID: tpl.ID, MonthIndex: 2},
		},
		ActorID: "tester",
	})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if conflict.MonthIndex != 2 {
		t.Fatalf("expected conflict on month 2, got %d", conflict.MonthIndex)
	}
	instances, err := env.Engine.Repo.ListInstancesByEntity(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("expected only the pre-existing instance, got %d", len(instances))
	}
}

func TestBulkScheduleValidation(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")

	cases := []struct {
		name string
		opts engine.BulkScheduleOptions
	}{
		{"bad month", engine.BulkScheduleOptions{
			EntityKind: domain.EntityProperty, EntityID: prop.ID, Year: 2024, InspectionType: "routine",
			Selections: []engine.Selection{{TemplateID: tpl.ID, MonthIndex: 12}},
		}},
		{"bad kind", engine.BulkScheduleOptions{
			EntityKind: "garden", EntityID: prop.ID, Year: 2024, InspectionType: "routine",
			Selections: []engine.Selection{{TemplateID: tpl.ID, MonthIndex: 1}},
		}},
		{"unknown type", engine.BulkScheduleOptions{
			EntityKind: domain.EntityProperty, EntityID: prop.ID, Year: 2024, InspectionType: "quantum",
			Selections: []engine.Selection{{TemplateID: tpl.ID, MonthIndex: 1}},
		}},
		{"empty selections", engine.BulkScheduleOptions{
			EntityKind: domain.EntityProperty, EntityID: prop.ID, Year: 2024, InspectionType: "routine",
		}},
	}
	for _, tc := range cases {
		tc.opts.ActorID = "tester"
		_, err := env.Engine.BulkSchedule(env.Ctx, tc.opts)
		var ve engine.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	_, err := env.Engine.BulkSchedule(env.Ctx, engine.BulkScheduleOptions{
		EntityKind: domain.EntityProperty, EntityID: "missing", Year: 2024, InspectionType: "routine",
		Selections: []engine.Selection{{TemplateID: tpl.ID, MonthIndex: 1}}, ActorID: "tester",
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for missing entity, got %v", err)
	}
}

func TestBulkScheduleDisabledTemplate(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")
	off := false
	if _, err := env.Engine.UpdateTemplate(env.Ctx, tpl.ID, nil, &off, "tester"); err != nil {
		t.Fatalf("disable template: %v", err)
	}
	_, err := env.Engine.BulkSchedule(env.Ctx, engine.BulkScheduleOptions{
		EntityKind: domain.EntityProperty, EntityID: prop.ID, Year: 2024, InspectionType: "routine",
		Selections: []engine.Selection{{TemplateID: tpl.ID, MonthIndex: 1}}, ActorID: "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for disabled template, got %v", err)
	}
}

func TestComplianceReport(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")

	// January: completed. March: left scheduled, now overdue. August: upcoming.
	for _, tc := range []struct {
		date     string
		complete bool
	}{
		{"2024-01-10", true},
		{"2024-03-15", false},
		{"2024-08-01", false},
	} {
		in, err := env.Engine.ScheduleInspection(env.Ctx, engine.InspectionCreateOptions{
			TemplateID: tpl.ID, EntityKind: domain.EntityProperty, EntityID: prop.ID,
			InspectionType: "routine", ScheduledDate: tc.date, ActorID: "tester",
		})
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if tc.complete {
			if _, err := env.Engine.SetInspectionStatus(env.Ctx, in.ID, domain.InspectionCompleted, "tester"); err != nil {
				t.Fatalf("complete: %v", err)
			}
		}
	}

	rep, err := env.Engine.ComplianceReport(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rep.Templates) != 1 {
		t.Fatalf("expected 1 template row, got %d", len(rep.Templates))
	}
	months := rep.Templates[0].Months
	if months[0].Status != calendar.StatusCompleted {
		t.Fatalf("january: expected completed, got %s", months[0].Status)
	}
	if months[2].Status != calendar.StatusOverdue {
		t.Fatalf("march: expected overdue, got %s", months[2].Status)
	}
	if months[7].Status != calendar.StatusScheduled {
		t.Fatalf("august: expected scheduled, got %s", months[7].Status)
	}
	if rep.Templates[0].ComplianceRate != 33 {
		t.Fatalf("expected rate 33, got %d", rep.Templates[0].ComplianceRate)
	}
	if rep.TotalScheduled != 3 || rep.TotalCompleted != 1 {
		t.Fatalf("unexpected totals: %d/%d", rep.TotalCompleted, rep.TotalScheduled)
	}
}

func TestComplianceReportIdempotent(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")
	if _, err := env.Engine.BulkSchedule(env.Ctx, engine.BulkScheduleOptions{
		EntityKind: domain.EntityProperty, EntityID: prop.ID, Year: 2024, InspectionType: "routine",
		Selections: []engine.Selection{{TemplateID: tpl.ID, MonthIndex: 5}, {TemplateID: tpl.ID, MonthIndex: 9}},
		ActorID:    "tester",
	}); err != nil {
		t.Fatalf("bulk schedule: %v", err)
	}
	first, err := env.Engine.ComplianceReport(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("first report: %v", err)
	}
	second, err := env.Engine.ComplianceReport(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("report not idempotent under a fixed clock")
	}
}

func TestComplianceReportEmptyOrgIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	rep, err := env.Engine.ComplianceReport(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("empty report must succeed: %v", err)
	}
	if len(rep.Templates) != 0 {
		t.Fatalf("expected no template rows")
	}
	if rep.OverallComplianceRate != 0 {
		t.Fatalf("expected overall rate 0")
	}
}

func TestSetInspectionStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)
	tpl := mustTemplate(t, env, "Fire doors")
	in, err := env.Engine.ScheduleInspection(env.Ctx, engine.InspectionCreateOptions{
		TemplateID: tpl.ID, EntityKind: domain.EntityProperty, EntityID: prop.ID,
		InspectionType: "routine", ScheduledDate: "2024-06-10", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	in, err = env.Engine.SetInspectionStatus(env.Ctx, in.ID, domain.InspectionInProgress, "tester")
	if err != nil || in.Status != domain.InspectionInProgress {
		t.Fatalf("to in_progress: %v", err)
	}
	in, err = env.Engine.SetInspectionStatus(env.Ctx, in.ID, domain.InspectionCompleted, "tester")
	if err != nil || in.Status != domain.InspectionCompleted {
		t.Fatalf("to completed: %v", err)
	}
	if in.CompletedDate == nil || *in.CompletedDate != "2024-06-01" {
		t.Fatalf("expected completion date stamped from clock, got %v", in.CompletedDate)
	}
	// completed is terminal
	if _, err := env.Engine.SetInspectionStatus(env.Ctx, in.ID, domain.InspectionScheduled, "tester"); err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestProjectDocumentsLatestWins(t *testing.T) {
	env := newTestEnv(t)
	prop := mustProperty(t, env)

	old := "2024-02-01"
	if _, err := env.Engine.AddDocument(env.Ctx, engine.DocumentCreateOptions{
		OrgID: "org-1", EntityKind: domain.EntityProperty, EntityID: prop.ID,
		DocumentType: "gas_certificate", ExpiryDate: &old, ActorID: "tester",
	}); err != nil {
		t.Fatalf("add old document: %v", err)
	}
	// Newer document with a later expiry supersedes the lapsed one.
	env.Engine.Now = func() time.Time { return time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC) }
	fresh := "2025-02-01"
	if _, err := env.Engine.AddDocument(env.Ctx, engine.DocumentCreateOptions{
		OrgID: "org-1", EntityKind: domain.EntityProperty, EntityID: prop.ID,
		DocumentType: "gas_certificate", ExpiryDate: &fresh, ActorID: "tester",
	}); err != nil {
		t.Fatalf("add fresh document: %v", err)
	}

	projections, err := env.Engine.ProjectDocuments(env.Ctx, domain.EntityProperty, prop.ID, 2024)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	var gas *engine.DocumentProjection
	for i := range projections {
		if projections[i].DocumentType == "gas_certificate" {
			gas = &projections[i]
		}
	}
	if gas == nil || gas.Document == nil {
		t.Fatalf("expected gas_certificate projection with document")
	}
	if *gas.Document.ExpiryDate != fresh {
		t.Fatalf("expected newest document to win, got expiry %s", *gas.Document.ExpiryDate)
	}
	for i, c := range gas.Months {
		if !c.HasDocument {
			t.Fatalf("month %d: expected coverage from 2025 expiry", i)
		}
	}
	// catalog types with no document still appear, uncovered
	var epc *engine.DocumentProjection
	for i := range projections {
		if projections[i].DocumentType == "epc" {
			epc = &projections[i]
		}
	}
	if epc == nil || epc.Document != nil {
		t.Fatalf("expected documentless epc projection")
	}
	if epc.Months[0].HasDocument {
		t.Fatalf("expected no coverage for missing document")
	}
}
