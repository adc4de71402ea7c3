package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"propcheck/internal/domain"
	"propcheck/internal/engine"
	"propcheck/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"schedule_conflict"`
	Message string         `json:"message" example:"month already has an inspection"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"month_index\":3}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Propcheck API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Propcheck API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerOrg(group, cfg.Engine)
	registerProperties(group, cfg.Engine)
	registerBlocks(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerInspections(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerCompliance(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "schedule_conflict", err.Error(), map[string]any{
			"template_id": ce.TemplateID,
			"month_index": ce.MonthIndex,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "schedule_conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Propcheck API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerOrg(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-org-config",
		Method:      http.MethodGet,
		Path:        "/org/config",
		Summary:     "Get org config",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		cfg, err := e.Repo.GetOrgConfig(ctx, e.Config.Org.ID)
		if err != nil {
			return nil, handleError(err)
		}
		data, err := json.Marshal(cfg)
		if err != nil {
			return nil, handleError(err)
		}
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: out}, nil
	})
}

func registerProperties(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-property",
		Method:        http.MethodPost,
		Path:          "/properties",
		Summary:       "Create property",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreatePropertyRequest `json:"body"`
	}) (*struct {
		Body PropertyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.PropertyCreateOptions{
			OrgID:   e.Config.Org.ID,
			Name:    input.Body.Name,
			ActorID: actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.Address != nil {
			opts.Address = *input.Body.Address
		}
		p, err := e.CreateProperty(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PropertyResponse `json:"body"`
		}{Body: propertyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-properties",
		Method:      http.MethodGet,
		Path:        "/properties",
		Summary:     "List properties",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PropertyResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListProperties(ctx, e.Config.Org.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PropertyResponse `json:"body"`
		}{Body: mapProperties(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-property",
		Method:      http.MethodGet,
		Path:        "/properties/{id}",
		Summary:     "Get property",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body PropertyResponse `json:"body"`
	}, error) {
		p, err := e.Repo.GetProperty(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PropertyResponse `json:"body"`
		}{Body: propertyResponse(p)}, nil
	})
}

func registerBlocks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-block",
		Method:        http.MethodPost,
		Path:          "/blocks",
		Summary:       "Create block",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateBlockRequest `json:"body"`
	}) (*struct {
		Body BlockResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.BlockCreateOptions{
			OrgID:   e.Config.Org.ID,
			Name:    input.Body.Name,
			ActorID: actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		b, err := e.CreateBlock(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlockResponse `json:"body"`
		}{Body: blockResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-blocks",
		Method:      http.MethodGet,
		Path:        "/blocks",
		Summary:     "List blocks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BlockResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListBlocks(ctx, e.Config.Org.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BlockResponse `json:"body"`
		}{Body: mapBlocks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-block",
		Method:      http.MethodGet,
		Path:        "/blocks/{id}",
		Summary:     "Get block",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body BlockResponse `json:"body"`
	}, error) {
		b, err := e.Repo.GetBlock(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlockResponse `json:"body"`
		}{Body: blockResponse(b)}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Create inspection template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body TemplateResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TemplateCreateOptions{
			OrgID:   e.Config.Org.ID,
			Name:    input.Body.Name,
			Scope:   domain.EntityKind(input.Body.Scope),
			ActorID: actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		t, err := e.CreateTemplate(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TemplateResponse `json:"body"`
		}{Body: templateResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List inspection templates",
	}, func(ctx context.Context, input *struct {
		Scope      string `query:"scope" enum:"property,block,"`
		ActiveOnly bool   `query:"active_only"`
	}) (*struct {
		Body []TemplateResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListTemplates(ctx, e.Config.Org.ID, domain.EntityKind(input.Scope), input.ActiveOnly)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TemplateResponse `json:"body"`
		}{Body: mapTemplates(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{id}",
		Summary:     "Get inspection template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TemplateResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTemplate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TemplateResponse `json:"body"`
		}{Body: templateResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-template",
		Method:      http.MethodPatch,
		Path:        "/templates/{id}",
		Summary:     "Update inspection template",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateTemplateRequest `json:"body"`
	}) (*struct {
		Body TemplateResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTemplate(ctx, input.ID, input.Body.Name, input.Body.Active, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TemplateResponse `json:"body"`
		}{Body: templateResponse(t)}, nil
	})
}

func registerInspections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-inspection",
		Method:        http.MethodPost,
		Path:          "/inspections",
		Summary:       "Schedule inspection",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateInspectionRequest `json:"body"`
	}) (*struct {
		Body InspectionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.InspectionCreateOptions{
			TemplateID:     input.Body.TemplateID,
			EntityKind:     domain.EntityKind(input.Body.EntityKind),
			EntityID:       input.Body.EntityID,
			InspectionType: input.Body.InspectionType,
			ScheduledDate:  input.Body.ScheduledDate,
			ActorID:        actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		in, err := e.ScheduleInspection(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InspectionResponse `json:"body"`
		}{Body: inspectionResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-inspections",
		Method:      http.MethodGet,
		Path:        "/inspections",
		Summary:     "List inspections for an entity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:"property,block" required:"true"`
		EntityID   string `query:"entity_id" required:"true"`
		Year       int    `query:"year"`
	}) (*struct {
		Body []InspectionResponse `json:"body"`
	}, error) {
		kind := domain.EntityKind(input.EntityKind)
		if !kind.IsValid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "entity_kind must be property or block", nil)
		}
		items, err := e.Repo.ListInstancesByEntity(ctx, kind, input.EntityID, input.Year)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []InspectionResponse `json:"body"`
		}{Body: mapInspections(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-inspection",
		Method:      http.MethodGet,
		Path:        "/inspections/{id}",
		Summary:     "Get inspection",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body InspectionResponse `json:"body"`
	}, error) {
		in, err := e.Repo.GetInstance(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InspectionResponse `json:"body"`
		}{Body: inspectionResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-inspection-status",
		Method:      http.MethodPatch,
		Path:        "/inspections/{id}/status",
		Summary:     "Update inspection status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                     `path:"id"`
		Body SetInspectionStatusRequest `json:"body"`
	}) (*struct {
		Body InspectionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in, err := e.SetInspectionStatus(ctx, input.ID, domain.InspectionStatus(input.Body.Status), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InspectionResponse `json:"body"`
		}{Body: inspectionResponse(in)}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Register compliance document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.DocumentCreateOptions{
			OrgID:        e.Config.Org.ID,
			EntityKind:   domain.EntityKind(input.Body.EntityKind),
			EntityID:     input.Body.EntityID,
			DocumentType: input.Body.DocumentType,
			ExpiryDate:   input.Body.ExpiryDate,
			ActorID:      actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		d, err := e.AddDocument(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents for an entity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:"property,block" required:"true"`
		EntityID   string `query:"entity_id" required:"true"`
		LatestOnly bool   `query:"latest_only"`
	}) (*struct {
		Body []DocumentResponse `json:"body"`
	}, error) {
		kind := domain.EntityKind(input.EntityKind)
		if !kind.IsValid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "entity_kind must be property or block", nil)
		}
		var items []domain.ComplianceDocument
		var err error
		if input.LatestOnly {
			items, err = e.Repo.ListLatestDocuments(ctx, kind, input.EntityID)
		} else {
			items, err = e.Repo.ListDocuments(ctx, kind, input.EntityID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DocumentResponse `json:"body"`
		}{Body: mapDocuments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		d, err := e.Repo.GetDocument(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})
}

func registerCompliance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "compliance-report",
		Method:      http.MethodGet,
		Path:        "/compliance/{entity_kind}/{entity_id}/report",
		Summary:     "Yearly compliance calendar report",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		EntityKind string `path:"entity_kind" enum:"property,block"`
		EntityID   string `path:"entity_id"`
		Year       int    `query:"year" required:"true" minimum:"1" maximum:"9999"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		rep, err := e.ComplianceReport(ctx, domain.EntityKind(input.EntityKind), input.EntityID, input.Year)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compliance-documents",
		Method:      http.MethodGet,
		Path:        "/compliance/{entity_kind}/{entity_id}/documents",
		Summary:     "Yearly document validity projection",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		EntityKind string `path:"entity_kind" enum:"property,block"`
		EntityID   string `path:"entity_id"`
		Year       int    `query:"year" required:"true" minimum:"1" maximum:"9999"`
	}) (*struct {
		Body ProjectionResponse `json:"body"`
	}, error) {
		items, err := e.ProjectDocuments(ctx, domain.EntityKind(input.EntityKind), input.EntityID, input.Year)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []engine.DocumentProjection{}
		}
		return &struct {
			Body ProjectionResponse `json:"body"`
		}{Body: ProjectionResponse{Year: input.Year, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-schedule",
		Method:      http.MethodPost,
		Path:        "/compliance/{entity_kind}/{entity_id}/bulk-schedule",
		Summary:     "Atomically schedule a batch of inspections",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		EntityKind string              `path:"entity_kind" enum:"property,block"`
		EntityID   string              `path:"entity_id"`
		Body       BulkScheduleRequest `json:"body"`
	}) (*struct {
		Body BulkScheduleResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.BulkScheduleOptions{
			EntityKind:     domain.EntityKind(input.EntityKind),
			EntityID:       input.EntityID,
			Year:           input.Body.Year,
			InspectionType: input.Body.InspectionType,
			Selections:     input.Body.Selections,
			ActorID:        actorID,
		}
		if input.Body.DayOfMonth != nil {
			opts.DayOfMonth = *input.Body.DayOfMonth
		}
		created, err := e.BulkSchedule(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BulkScheduleResponse `json:"body"`
		}{Body: BulkScheduleResponse{Created: created}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the org event log",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.TailEvents(ctx, e.Config.Org.ID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
