package propchecksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Propcheck HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Property represents the API property model (partial).
type Property struct {
	ID      string `json:"id"`
	OrgID   string `json:"org_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Template represents an inspection template.
type Template struct {
	ID     string `json:"id"`
	OrgID  string `json:"org_id"`
	Name   string `json:"name"`
	Scope  string `json:"scope"`
	Active bool   `json:"active"`
}

// Inspection represents a scheduled inspection instance.
type Inspection struct {
	ID             string  `json:"id"`
	TemplateID     string  `json:"template_id"`
	EntityKind     string  `json:"entity_kind"`
	EntityID       string  `json:"entity_id"`
	InspectionType string  `json:"inspection_type"`
	ScheduledDate  string  `json:"scheduled_date"`
	CompletedDate  *string `json:"completed_date,omitempty"`
	Status         string  `json:"status"`
}

// Document represents a compliance document.
type Document struct {
	ID           string  `json:"id"`
	EntityKind   string  `json:"entity_kind"`
	EntityID     string  `json:"entity_id"`
	DocumentType string  `json:"document_type"`
	ExpiryDate   *string `json:"expiry_date,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// MonthCell is one month slot in a template's calendar row.
type MonthCell struct {
	MonthIndex     int    `json:"month_index"`
	Status         string `json:"status"`
	Count          int    `json:"count"`
	CompletedCount int    `json:"completed_count"`
	OverdueCount   int    `json:"overdue_count"`
}

// TemplateReport is one calendar row plus its compliance rate.
type TemplateReport struct {
	Template       Template    `json:"template"`
	Months         []MonthCell `json:"months"`
	ComplianceRate int         `json:"compliance_rate"`
}

// Report is the full yearly compliance report for an entity.
type Report struct {
	Year                  int              `json:"year"`
	Templates             []TemplateReport `json:"templates"`
	OverallComplianceRate int              `json:"overall_compliance_rate"`
	TotalScheduled        int              `json:"total_scheduled"`
	TotalCompleted        int              `json:"total_completed"`
}

// DocMonthCell is one month slot in a document projection row.
type DocMonthCell struct {
	MonthIndex  int    `json:"month_index"`
	Status      string `json:"status"`
	HasDocument bool   `json:"has_document"`
}

// DocumentProjection is a document type's validity across twelve months.
type DocumentProjection struct {
	DocumentType string         `json:"document_type"`
	Document     *Document      `json:"document,omitempty"`
	Months       []DocMonthCell `json:"months"`
}

// Projection wraps the document projection response.
type Projection struct {
	Year  int                  `json:"year"`
	Items []DocumentProjection `json:"items"`
}

// Selection picks one template/month slot for bulk scheduling.
type Selection struct {
	TemplateID string `json:"template_id"`
	MonthIndex int    `json:"month_index"`
}

// BulkScheduleResult reports how many inspections a batch created.
type BulkScheduleResult struct {
	Created int `json:"created"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProperty creates a property.
func (c *Client) CreateProperty(ctx context.Context, name, address string) (Property, error) {
	body := map[string]any{
		"name":    name,
		"address": address,
	}
	var resp Property
	err := c.do(ctx, http.MethodPost, "v1/properties", body, &resp)
	return resp, err
}

// CreateTemplate creates an inspection template.
func (c *Client) CreateTemplate(ctx context.Context, name, scope string) (Template, error) {
	body := map[string]any{
		"name":  name,
		"scope": scope,
	}
	var resp Template
	err := c.do(ctx, http.MethodPost, "v1/templates", body, &resp)
	return resp, err
}

// AddDocument registers a compliance document. Pass an empty expiry for
// a permanently valid document.
func (c *Client) AddDocument(ctx context.Context, entityKind, entityID, documentType, expiryDate string) (Document, error) {
	body := map[string]any{
		"entity_kind":   entityKind,
		"entity_id":     entityID,
		"document_type": documentType,
	}
	if expiryDate != "" {
		body["expiry_date"] = expiryDate
	}
	var resp Document
	err := c.do(ctx, http.MethodPost, "v1/documents", body, &resp)
	return resp, err
}

// BulkSchedule atomically schedules a batch of inspections for an entity.
func (c *Client) BulkSchedule(ctx context.Context, entityKind, entityID string, year int, inspectionType string, selections []Selection) (BulkScheduleResult, error) {
	body := map[string]any{
		"year":            year,
		"inspection_type": inspectionType,
		"selections":      selections,
	}
	var resp BulkScheduleResult
	endpoint := c.compliancePath(entityKind, entityID, "bulk-schedule")
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ComplianceReport returns the yearly calendar report for an entity.
func (c *Client) ComplianceReport(ctx context.Context, entityKind, entityID string, year int) (Report, error) {
	var resp Report
	endpoint := fmt.Sprintf("%s?year=%d", c.compliancePath(entityKind, entityID, "report"), year)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DocumentProjections returns the yearly document validity projection.
func (c *Client) DocumentProjections(ctx context.Context, entityKind, entityID string, year int) (Projection, error) {
	var resp Projection
	endpoint := fmt.Sprintf("%s?year=%d", c.compliancePath(entityKind, entityID, "documents"), year)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetInspectionStatus advances an inspection's lifecycle.
func (c *Client) SetInspectionStatus(ctx context.Context, id, status string) (Inspection, error) {
	body := map[string]any{"status": status}
	var resp Inspection
	endpoint := fmt.Sprintf("v1/inspections/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// ListInspections returns inspections for an entity, optionally scoped to a year.
func (c *Client) ListInspections(ctx context.Context, entityKind, entityID string, year int) ([]Inspection, error) {
	endpoint := fmt.Sprintf("v1/inspections?entity_kind=%s&entity_id=%s",
		url.QueryEscape(entityKind), url.QueryEscape(entityID))
	if year > 0 {
		endpoint = fmt.Sprintf("%s&year=%d", endpoint, year)
	}
	var resp []Inspection
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) compliancePath(entityKind, entityID, leaf string) string {
	return fmt.Sprintf("v1/compliance/%s/%s/%s",
		url.PathEscape(entityKind), url.PathEscape(entityID), strings.TrimLeft(leaf, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
