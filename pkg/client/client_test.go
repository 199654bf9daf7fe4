package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api").WithToken("tok")
}

func TestGetAll_SendsOnlyAllowListedFilters(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/leads", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[{"id":"l1","company_name":"Acme"}],"total":1,"page":2,"per_page":10,"total_pages":1}`))
	})

	page, err := c.GetAll(context.Background(), LeadFilters{
		EnquiryStatus: "New",
		City:          "Pune",
		Page:          2,
		PerPage:       10,
		FollowUpDue:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "city=Pune&enquiry_status=New&follow_up_due=true&page=2&per_page=10", gotQuery)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "l1", page.Data[0].ID())
	assert.Equal(t, int64(1), page.Total)
}

func TestGetAll_EmptyFiltersSendNoQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"data":[],"total":0}`))
	})

	page, err := c.GetAll(context.Background(), LeadFilters{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestAPIError_Messages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"json error field", http.StatusNotFound, `{"error":"Lead not found"}`, "Lead not found"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"empty body", http.StatusServiceUnavailable, "", "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.GetByID(context.Background(), "x")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{Status: 404}))
	assert.False(t, IsNotFound(&APIError{Status: 500}))
	assert.False(t, IsNotFound(io.EOF))
}

func TestNonJSONSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	})

	_, err := c.GetByID(context.Background(), "x")
	assert.ErrorContains(t, err, "decode response")

	// No result expected, so the body is ignored.
	assert.NoError(t, c.Delete(context.Background(), "x"))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).GetStats(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestWriteMethods(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]interface{}
	}
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})
		_, _ = w.Write([]byte(`{"id":"l1"}`))
	})
	ctx := context.Background()

	_, err := c.Create(ctx, map[string]interface{}{"company": "Acme"})
	require.NoError(t, err)
	_, err = c.Update(ctx, "l1", map[string]interface{}{"city": "Pune"})
	require.NoError(t, err)
	_, err = c.Patch(ctx, "l1", map[string]interface{}{"notes": "hi"})
	require.NoError(t, err)
	_, err = c.UpdateStatus(ctx, "l1", "Working", "called")
	require.NoError(t, err)
	_, err = c.ConvertToProject(ctx, "l1", nil)
	require.NoError(t, err)
	_, err = c.AddFollowUp(ctx, "l1", "2026-11-02", "call back")
	require.NoError(t, err)
	_, err = c.AddActivity(ctx, "l1", map[string]interface{}{"title": "Site visit"})
	require.NoError(t, err)
	_, err = c.BulkUpdate(ctx, []string{"l1", "l2"}, map[string]interface{}{"tags": "q4"})
	require.NoError(t, err)

	require.Len(t, calls, 8)
	assert.Equal(t, call{"POST", "/api/leads", map[string]interface{}{"company": "Acme"}}, calls[0])
	assert.Equal(t, "PUT", calls[1].method)
	assert.Equal(t, "/api/leads/l1", calls[1].path)
	assert.Equal(t, "PATCH", calls[2].method)
	assert.Equal(t, call{"PUT", "/api/leads/l1/status", map[string]interface{}{"enquiry_status": "Working", "notes": "called"}}, calls[3])
	assert.Equal(t, call{"POST", "/api/leads/l1/convert", map[string]interface{}{}}, calls[4])
	assert.Equal(t, "/api/leads/l1/followup", calls[5].path)
	assert.Equal(t, "2026-11-02", calls[5].body["date"])
	assert.Equal(t, "/api/leads/l1/activities", calls[6].path)
	assert.Equal(t, "PUT", calls[7].method)
	assert.Equal(t, "/api/leads/bulk-update", calls[7].path)
	assert.Equal(t, []interface{}{"l1", "l2"}, calls[7].body["ids"])
}

func TestImport_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/leads/import", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "leads.csv", header.Filename)
		assert.Equal(t, "Company Name\nAcme\n", string(data))
		assert.Equal(t, "advanced", r.FormValue("mode"))
		assert.Equal(t, "u1", r.FormValue("created_by"))
		assert.JSONEq(t, `{"Org":"company_name"}`, r.FormValue("mapping"))

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"j1","status":"pending","step":"progress"}`))
	})

	job, err := c.Import(context.Background(), "leads.csv", strings.NewReader("Company Name\nAcme\n"), ImportOptions{
		Mode:      "advanced",
		Mapping:   map[string]string{"Org": "company_name"},
		CreatedBy: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.False(t, job.Finished())
}

func TestImportStatusAndExport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/leads/import/j1":
			_, _ = w.Write([]byte(`{"id":"j1","status":"completed","successful":3,"duplicates":1}`))
		case "/api/leads/export":
			assert.Equal(t, "search=acme", r.URL.RawQuery)
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("Enquiry No,Company\nENQ-1,Acme\n"))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	job, err := c.ImportStatus(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, job.Finished())
	assert.Equal(t, 3, job.Successful)
	assert.Equal(t, 1, job.Duplicates)

	csv, err := c.Export(ctx, LeadFilters{Search: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "Enquiry No,Company\nENQ-1,Acme\n", string(csv))
}

func TestPrepareClone(t *testing.T) {
	original := Lead{
		"id":                   "l1",
		"created_at":           "2026-01-01T00:00:00Z",
		"updated_at":           "2026-01-02T00:00:00Z",
		"enquiry_no":           "ENQ-OLD",
		"converted_project_id": "p1",
		"company_name":         "Acme",
		"company":              "Acme",
		"contact_name":         "Jane",
		"estimated_value":      1000.0,
		"value":                1000.0,
		"enquiry_status":       "Won",
		"project_status":       "Closed",
		"status_color":         "bg-green-100",
	}

	out := PrepareClone(original, map[string]interface{}{
		"value": 2500,
		"city":  "Pune",
	})

	for _, k := range []string{"id", "created_at", "updated_at", "converted_project_id", "company", "status_color", "estimated_value"} {
		assert.NotContains(t, out, k)
	}
	assert.NotEqual(t, "ENQ-OLD", out["enquiry_no"])
	assert.True(t, strings.HasPrefix(out["enquiry_no"].(string), "ENQ-"))
	assert.Equal(t, "New", out["enquiry_status"])
	assert.Equal(t, "Open", out["project_status"])
	assert.Equal(t, "Acme", out["company_name"])
	assert.Equal(t, 2500, out["value"])
	assert.Equal(t, "Pune", out["city"])

	// The original is left untouched.
	assert.Equal(t, "l1", original["id"])
}

func TestClone(t *testing.T) {
	var created map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/leads/l1":
			_, _ = w.Write([]byte(`{"id":"l1","enquiry_no":"ENQ-1","company_name":"Acme","enquiry_status":"Working"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/leads":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"l2","company_name":"Acme"}`))
		default:
			http.NotFound(w, r)
		}
	})

	lead, err := c.Clone(context.Background(), "l1", map[string]interface{}{"contact_name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "l2", lead.ID())
	assert.Equal(t, "Bob", created["contact_name"])
	assert.Equal(t, "New", created["enquiry_status"])
	assert.NotContains(t, created, "id")

	_, err = c.Clone(context.Background(), "missing", nil)
	assert.True(t, IsNotFound(err))
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "admin@example.com", body["login"])
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"token":"abc","user":{"email":"admin@example.com"}}`))
	}))
	defer srv.Close()
	c := New(srv.URL)

	res, err := c.Login(context.Background(), "admin@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Token)

	authed := c.WithToken(res.Token)
	assert.Equal(t, "abc", authed.token)
	assert.Empty(t, c.token)
}
