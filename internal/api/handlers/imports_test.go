package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/cache"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/hugh/go-crm/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupImportTestRouter(t *testing.T, maxBytes int64) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	leadSvc := leads.NewService(tc.DB, tc.Logger)
	importSvc := imports.NewService(tc.DB, store, cache.NewMemory(), leadSvc, tc.Logger, imports.WithMaxBytes(maxBytes))
	handler := handlers.NewImportHandler(importSvc, maxBytes, tc.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Use(middleware.ReadOnlyViewers)
	r.Post("/api/leads/import", handler.Upload)
	r.Get("/api/leads/import/template", handler.Template)
	r.Get("/api/leads/import/{id}", handler.Status)

	return r, tc
}

func uploadRequest(t *testing.T, token, name, content string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/leads/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type importJobBody struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Duplicates int       `json:"duplicates"`
	Errors     []string  `json:"errors"`
	Step       string    `json:"step"`
}

const importCSV = "Company Name,Contact Name,Contact Email,City\n" +
	"Globex,John Smith,john@globex.com,Mumbai\n" +
	"Initech,Bill,not-an-email,Delhi\n" +
	"Umbrella,Alice,alice@umbrella.com,Pune\n"

func TestImportHandler_QuickUpload(t *testing.T) {
	router, tc := setupImportTestRouter(t, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, tc.Token, "leads.csv", importCSV, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var job importJobBody
	testutil.ParseJSONResponse(t, rr, &job)
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, models.ImportModeQuick, job.Mode)
	assert.Equal(t, string(imports.StepResults), job.Step)
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 2, job.Successful)
	assert.Equal(t, 1, job.Failed)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0], "Row 3")

	var count int64
	tc.DB.Model(&models.Lead{}).Where("organization_id = ?", tc.Org.ID).Count(&count)
	assert.Equal(t, int64(2), count)

	t.Run("status of the finished job", func(t *testing.T) {
		rr := serve(t, router, "GET", "/api/leads/import/"+job.ID.String(), nil, tc.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var got importJobBody
		testutil.ParseJSONResponse(t, rr, &got)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, 2, got.Successful)
		assert.Equal(t, string(imports.StepResults), got.Step)
	})

	t.Run("re-import counts duplicates", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, tc.Token, "leads.csv", importCSV, nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var again importJobBody
		testutil.ParseJSONResponse(t, rr, &again)
		assert.Equal(t, 0, again.Successful)
		assert.Equal(t, 2, again.Duplicates)
	})
}

func TestImportHandler_AdvancedUpload(t *testing.T) {
	router, tc := setupImportTestRouter(t, 0)
	csv := "Org,Person,Mail\nGlobex,John Smith,john@globex.com\n"

	t.Run("missing required mappings", func(t *testing.T) {
		mapping, err := json.Marshal(map[string]string{"Org": "company_name"})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, tc.Token, "leads.csv", csv, map[string]string{
			"mode":    "advanced",
			"mapping": string(mapping),
		}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "is required", resp.Details[imports.FieldContactName])
		assert.Equal(t, "is required", resp.Details[imports.FieldContactEmail])
		assert.NotContains(t, resp.Details, imports.FieldCompanyName)
	})

	t.Run("complete mapping", func(t *testing.T) {
		mapping, err := json.Marshal(map[string]string{
			"Org":    imports.FieldCompanyName,
			"Person": imports.FieldContactName,
			"Mail":   imports.FieldContactEmail,
		})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, tc.Token, "leads.csv", csv, map[string]string{
			"mode":    "advanced",
			"mapping": string(mapping),
		}))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var job importJobBody
		testutil.ParseJSONResponse(t, rr, &job)
		assert.Equal(t, models.ImportModeAdvanced, job.Mode)
		assert.Equal(t, 1, job.Successful)
	})

	t.Run("malformed mapping", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, tc.Token, "leads.csv", csv, map[string]string{
			"mode":    "advanced",
			"mapping": "{not json",
		}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "mapping")
	})
}

func TestImportHandler_Rejections(t *testing.T) {
	router, tc := setupImportTestRouter(t, 64)

	tests := []struct {
		name       string
		file       string
		content    string
		fields     map[string]string
		wantStatus int
	}{
		{"no file", "", "", nil, http.StatusBadRequest},
		{"unsupported extension", "leads.txt", "a,b\n", nil, http.StatusBadRequest},
		{"legacy excel in advanced mode", "leads.xls", "a,b\n", map[string]string{"mode": "advanced"}, http.StatusBadRequest},
		{"unknown mode", "leads.csv", "a,b\n", map[string]string{"mode": "turbo"}, http.StatusBadRequest},
		{"over the size limit", "leads.csv", string(bytes.Repeat([]byte("x"), 200)), nil, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, uploadRequest(t, tc.Token, tt.file, tt.content, tt.fields))
			testutil.AssertStatus(t, rr, tt.wantStatus)
		})
	}

	t.Run("legacy excel in quick mode fails the job", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, tc.Token, "leads.xls", "a,b\n", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var job importJobBody
		testutil.ParseJSONResponse(t, rr, &job)
		assert.Equal(t, models.ImportStatusFailed, job.Status)
		require.Len(t, job.Errors, 1)
		assert.Contains(t, job.Errors[0], "legacy .xls")
	})

	t.Run("viewers cannot import", func(t *testing.T) {
		_, viewerToken := tc.TokenFor(t, models.RoleViewer)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, viewerToken, "leads.csv", "a,b\n", nil))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestImportHandler_Status(t *testing.T) {
	router, tc := setupImportTestRouter(t, 0)

	t.Run("unknown job", func(t *testing.T) {
		rr := serve(t, router, "GET", "/api/leads/import/"+uuid.NewString(), nil, tc.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := serve(t, router, "GET", "/api/leads/import/nope", nil, tc.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("job from another organization", func(t *testing.T) {
		other := testutil.CreateTestOrg(t, tc.DB)
		job := models.ImportJob{OrganizationID: other.ID, Mode: models.ImportModeQuick, Status: models.ImportStatusPending}
		require.NoError(t, tc.DB.Create(&job).Error)

		rr := serve(t, router, "GET", "/api/leads/import/"+job.ID.String(), nil, tc.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("pending job reports progress step", func(t *testing.T) {
		job := models.ImportJob{OrganizationID: tc.Org.ID, Mode: models.ImportModeQuick, Status: models.ImportStatusPending}
		require.NoError(t, tc.DB.Create(&job).Error)

		rr := serve(t, router, "GET", "/api/leads/import/"+job.ID.String(), nil, tc.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var got importJobBody
		testutil.ParseJSONResponse(t, rr, &got)
		assert.Equal(t, string(imports.StepProgress), got.Step)
	})
}

func TestImportHandler_Template(t *testing.T) {
	router, tc := setupImportTestRouter(t, 0)

	rr := serve(t, router, "GET", "/api/leads/import/template", nil, tc.Token)
	testutil.AssertStatus(t, rr, http.StatusOK)

	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), imports.TemplateFileName)
	assert.Equal(t, imports.Template(), rr.Body.Bytes())
}
