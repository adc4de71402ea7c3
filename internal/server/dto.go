package server

import (
	"propcheck/internal/calendar"
	"propcheck/internal/domain"
	"propcheck/internal/engine"
)

// Request payloads

type CreatePropertyRequest struct {
	ID      *string `json:"id,omitempty"`
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
}

type CreateBlockRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type CreateTemplateRequest struct {
	ID    *string `json:"id,omitempty"`
	Name  string  `json:"name"`
	Scope string  `json:"scope" enum:"property,block"`
}

type UpdateTemplateRequest struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type CreateInspectionRequest struct {
	ID             *string `json:"id,omitempty"`
	TemplateID     string  `json:"template_id"`
	EntityKind     string  `json:"entity_kind" enum:"property,block"`
	EntityID       string  `json:"entity_id"`
	InspectionType string  `json:"inspection_type"`
	ScheduledDate  string  `json:"scheduled_date" format:"date"`
}

type SetInspectionStatusRequest struct {
	Status string `json:"status" enum:"draft,scheduled,in_progress,completed"`
}

type CreateDocumentRequest struct {
	ID           *string `json:"id,omitempty"`
	EntityKind   string  `json:"entity_kind" enum:"property,block"`
	EntityID     string  `json:"entity_id"`
	DocumentType string  `json:"document_type"`
	ExpiryDate   *string `json:"expiry_date,omitempty" format:"date"`
}

type BulkScheduleRequest struct {
	Year           int                `json:"year" minimum:"1" maximum:"9999"`
	InspectionType string             `json:"inspection_type"`
	DayOfMonth     *int               `json:"day_of_month,omitempty" minimum:"1" maximum:"31"`
	Selections     []engine.Selection `json:"selections"`
}

// Response payloads

type PropertyResponse struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type BlockResponse struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type TemplateResponse struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Scope     string `json:"scope" enum:"property,block"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type InspectionResponse struct {
	ID             string  `json:"id"`
	TemplateID     string  `json:"template_id"`
	EntityKind     string  `json:"entity_kind" enum:"property,block"`
	EntityID       string  `json:"entity_id"`
	InspectionType string  `json:"inspection_type"`
	ScheduledDate  string  `json:"scheduled_date" format:"date"`
	CompletedDate  *string `json:"completed_date,omitempty" format:"date"`
	Status         string  `json:"status" enum:"draft,scheduled,in_progress,completed"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type DocumentResponse struct {
	ID           string  `json:"id"`
	OrgID        string  `json:"org_id"`
	EntityKind   string  `json:"entity_kind,omitempty" enum:"property,block"`
	EntityID     string  `json:"entity_id,omitempty"`
	DocumentType string  `json:"document_type"`
	ExpiryDate   *string `json:"expiry_date,omitempty" format:"date"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type BulkScheduleResponse struct {
	Created int `json:"created"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func propertyResponse(p domain.Property) PropertyResponse {
	return PropertyResponse{ID: p.ID, OrgID: p.OrgID, Name: p.Name, Address: p.Address, CreatedAt: p.CreatedAt}
}

func mapProperties(items []domain.Property) []PropertyResponse {
	res := []PropertyResponse{}
	for _, p := range items {
		res = append(res, propertyResponse(p))
	}
	return res
}

func blockResponse(b domain.Block) BlockResponse {
	return BlockResponse{ID: b.ID, OrgID: b.OrgID, Name: b.Name, CreatedAt: b.CreatedAt}
}

func mapBlocks(items []domain.Block) []BlockResponse {
	res := []BlockResponse{}
	for _, b := range items {
		res = append(res, blockResponse(b))
	}
	return res
}

func templateResponse(t domain.InspectionTemplate) TemplateResponse {
	return TemplateResponse{ID: t.ID, OrgID: t.OrgID, Name: t.Name, Scope: t.Scope.String(), Active: t.Active, CreatedAt: t.CreatedAt}
}

func mapTemplates(items []domain.InspectionTemplate) []TemplateResponse {
	res := []TemplateResponse{}
	for _, t := range items {
		res = append(res, templateResponse(t))
	}
	return res
}

func inspectionResponse(in domain.InspectionInstance) InspectionResponse {
	return InspectionResponse{
		ID:             in.ID,
		TemplateID:     in.TemplateID,
		EntityKind:     in.EntityKind.String(),
		EntityID:       in.EntityID,
		InspectionType: in.InspectionType,
		ScheduledDate:  in.ScheduledDate,
		CompletedDate:  in.CompletedDate,
		Status:         in.Status.String(),
		CreatedAt:      in.CreatedAt,
	}
}

func mapInspections(items []domain.InspectionInstance) []InspectionResponse {
	res := []InspectionResponse{}
	for _, in := range items {
		res = append(res, inspectionResponse(in))
	}
	return res
}

func documentResponse(d domain.ComplianceDocument) DocumentResponse {
	return DocumentResponse{
		ID:           d.ID,
		OrgID:        d.OrgID,
		EntityKind:   d.EntityKind.String(),
		EntityID:     d.EntityID,
		DocumentType: d.DocumentType,
		ExpiryDate:   d.ExpiryDate,
		CreatedAt:    d.CreatedAt,
	}
}

func mapDocuments(items []domain.ComplianceDocument) []DocumentResponse {
	res := []DocumentResponse{}
	for _, d := range items {
		res = append(res, documentResponse(d))
	}
	return res
}

func mapEvents(items []domain.Event) []EventResponse {
	res := []EventResponse{}
	for _, e := range items {
		res = append(res, EventResponse{
			ID: e.ID, TS: e.TS, Type: e.Type, OrgID: e.OrgID,
			EntityKind: e.EntityKind, EntityID: e.EntityID, ActorID: e.ActorID, Payload: e.Payload,
		})
	}
	return res
}

// ReportResponse is the wire shape of a compliance calendar report.
type ReportResponse = calendar.Report

// ProjectionResponse is the wire shape of a document validity projection.
type ProjectionResponse struct {
	Year  int                        `json:"year"`
	Items []engine.DocumentProjection `json:"items"`
}
