package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"propcheck/internal/config"
	"propcheck/internal/db"
	"propcheck/internal/engine"
	"propcheck/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("org-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	if err := e.InitOrg(context.Background(), cfg.Org.ID, "Test Org", "tester"); err != nil {
		t.Fatalf("init org: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProperty(t *testing.T, srv *testServer, name string) PropertyResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/properties", map[string]any{
		"name": name,
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create property status %d: %s", res.StatusCode, string(data))
	}
	var p PropertyResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal property: %v", err)
	}
	return p
}

func createTemplate(t *testing.T, srv *testServer, name string) TemplateResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/templates", map[string]any{
		"name":  name,
		"scope": "property",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create template status %d: %s", res.StatusCode, string(data))
	}
	var tpl TemplateResponse
	if err := json.Unmarshal(data, &tpl); err != nil {
		t.Fatalf("unmarshal template: %v", err)
	}
	return tpl
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/properties", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", res.StatusCode)
	}
}

func TestBulkScheduleAndReport(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	prop := createProperty(t, srv, "12 High Street")
	tpl := createTemplate(t, srv, "Fire doors")

	res, data := doJSON(t, srv.Client(), http.MethodPost,
		srv.URL+"/v1/compliance/property/"+prop.ID+"/bulk-schedule", map[string]any{
			"year":            2024,
			"inspection_type": "routine",
			"selections": []map[string]any{
				{"template_id": tpl.ID, "month_index": 0},
				{"template_id": tpl.ID, "month_index": 7},
			},
		}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bulk schedule status %d: %s", res.StatusCode, string(data))
	}
	var bulk BulkScheduleResponse
	if err := json.Unmarshal(data, &bulk); err != nil {
		t.Fatalf("unmarshal bulk response: %v", err)
	}
	if bulk.Created != 2 {
		t.Fatalf("expected 2 created, got %d", bulk.Created)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v1/compliance/property/"+prop.ID+"/report?year=2024", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report status %d: %s", res.StatusCode, string(data))
	}
	var rep ReportResponse
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if len(rep.Templates) != 1 {
		t.Fatalf("expected 1 template row, got %d", len(rep.Templates))
	}
	months := rep.Templates[0].Months
	if months[0].Status != "overdue" {
		t.Fatalf("january is in the past, expected overdue, got %s", months[0].Status)
	}
	if months[7].Status != "scheduled" {
		t.Fatalf("august: expected scheduled, got %s", months[7].Status)
	}
	if months[3].Status != "not_scheduled" {
		t.Fatalf("april: expected not_scheduled, got %s", months[3].Status)
	}
}

func TestBulkScheduleConflictEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	prop := createProperty(t, srv, "12 High Street")
	tpl := createTemplate(t, srv, "Fire doors")

	body := map[string]any{
		"year":            2024,
		"inspection_type": "routine",
		"selections": []map[string]any{
			{"template_id": tpl.ID, "month_index": 4},
		},
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost,
		srv.URL+"/v1/compliance/property/"+prop.ID+"/bulk-schedule", body, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("first bulk schedule status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost,
		srv.URL+"/v1/compliance/property/"+prop.ID+"/bulk-schedule", body, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "schedule_conflict" {
		t.Fatalf("expected schedule_conflict, got %s", envelope.Error.Code)
	}
	if envelope.Error.Details["template_id"] != tpl.ID {
		t.Fatalf("expected template id in details, got %v", envelope.Error.Details)
	}

	// The rejected batch must not have written anything new.
	res, data = doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v1/inspections?entity_kind=property&entity_id="+prop.ID+"&year=2024", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list inspections status %d: %s", res.StatusCode, string(data))
	}
	var items []InspectionResponse
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal inspections: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 inspection, got %d", len(items))
	}
}

func TestValidationErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/templates", map[string]any{
		"name":  "Fire doors",
		"scope": "garden",
	}, actorHeader)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDocumentProjectionEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	prop := createProperty(t, srv, "12 High Street")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/documents", map[string]any{
		"entity_kind":   "property",
		"entity_id":     prop.ID,
		"document_type": "gas_certificate",
		"expiry_date":   "2024-06-15",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create document status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v1/compliance/property/"+prop.ID+"/documents?year=2024", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("projection status %d: %s", res.StatusCode, string(data))
	}
	var proj ProjectionResponse
	if err := json.Unmarshal(data, &proj); err != nil {
		t.Fatalf("unmarshal projection: %v", err)
	}
	var found bool
	for _, item := range proj.Items {
		if item.DocumentType != "gas_certificate" {
			continue
		}
		found = true
		if item.Months[4].Status != "valid" {
			t.Fatalf("may: expected valid, got %s", item.Months[4].Status)
		}
		if item.Months[5].Status != "expiring_soon" {
			t.Fatalf("june: expected expiring_soon, got %s", item.Months[5].Status)
		}
		if item.Months[6].Status != "expired" || item.Months[6].HasDocument {
			t.Fatalf("july: expected uncovered expired, got %+v", item.Months[6])
		}
	}
	if !found {
		t.Fatalf("gas_certificate projection missing: %s", string(data))
	}
}
