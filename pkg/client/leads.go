package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/google/go-querystring/query"
	"github.com/hugh/go-crm/pkg/util"
)

// Lead is a lead as the API returns it: canonical fields plus aliases.
type Lead map[string]interface{}

// ID returns the lead's id, or "" when absent.
func (l Lead) ID() string {
	id, _ := l["id"].(string)
	return id
}

// LeadFilters are the query parameters accepted by GetAll and Export.
// Only these keys are ever sent; zero values are omitted.
type LeadFilters struct {
	EnquiryStatus string `url:"enquiry_status,omitempty"`
	CompanyName   string `url:"company_name,omitempty"`
	EnquiryType   string `url:"enquiry_type,omitempty"`
	City          string `url:"city,omitempty"`
	ContactName   string `url:"contact_name,omitempty"`
	ContactEmail  string `url:"contact_email,omitempty"`
	Search        string `url:"search,omitempty"`
	Page          int    `url:"page,omitempty"`
	PerPage       int    `url:"per_page,omitempty"`
	SortBy        string `url:"sort_by,omitempty"`
	SortOrder     string `url:"sort_order,omitempty"`
	Year          int    `url:"year,omitempty"`
	FollowUpDue   bool   `url:"follow_up_due,omitempty"`
}

func (f LeadFilters) encode() (string, error) {
	v, err := query.Values(f)
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	if len(v) == 0 {
		return "", nil
	}
	return "?" + v.Encode(), nil
}

type LeadPage struct {
	Data       []Lead `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
}

func leadPath(id string) string {
	return "/leads/" + url.PathEscape(id)
}

func (c *Client) GetAll(ctx context.Context, f LeadFilters) (*LeadPage, error) {
	qs, err := f.encode()
	if err != nil {
		return nil, err
	}
	var out LeadPage
	if err := c.call(ctx, http.MethodGet, "/leads"+qs, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetByID(ctx context.Context, id string) (Lead, error) {
	var out Lead
	if err := c.call(ctx, http.MethodGet, leadPath(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create accepts canonical or alias field names.
func (c *Client) Create(ctx context.Context, lead map[string]interface{}) (Lead, error) {
	var out Lead
	if err := c.call(ctx, http.MethodPost, "/leads", lead, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id string, lead map[string]interface{}) (Lead, error) {
	var out Lead
	if err := c.call(ctx, http.MethodPut, leadPath(id), lead, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Patch changes only the given fields.
func (c *Client) Patch(ctx context.Context, id string, fields map[string]interface{}) (Lead, error) {
	var out Lead
	if err := c.call(ctx, http.MethodPatch, leadPath(id), fields, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, leadPath(id), nil, nil)
}

type Stats struct {
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
	BySource       map[string]int64 `json:"by_source"`
	TotalValue     float64          `json:"total_value"`
	AverageValue   float64          `json:"average_value"`
	Converted      int64            `json:"converted"`
	Lost           int64            `json:"lost"`
	ConversionRate float64          `json:"conversion_rate"`
	FollowUpsDue   int64            `json:"follow_ups_due"`
	NewThisMonth   int64            `json:"new_this_month"`
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.call(ctx, http.MethodGet, "/leads/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id, status, notes string) (Lead, error) {
	var out Lead
	body := map[string]string{"enquiry_status": status, "notes": notes}
	if err := c.call(ctx, http.MethodPut, leadPath(id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ConvertResult struct {
	Project map[string]interface{} `json:"project"`
	LeadID  string                 `json:"lead_id"`
	Created bool                   `json:"created"`
}

// ConvertToProject converts the lead, overriding draft fields with
// overrides. Converting twice returns the existing project.
func (c *Client) ConvertToProject(ctx context.Context, id string, overrides map[string]interface{}) (*ConvertResult, error) {
	if overrides == nil {
		overrides = map[string]interface{}{}
	}
	var out ConvertResult
	if err := c.call(ctx, http.MethodPost, leadPath(id)+"/convert", overrides, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddFollowUp schedules a follow-up; date is YYYY-MM-DD.
func (c *Client) AddFollowUp(ctx context.Context, id, date, notes string) (map[string]interface{}, error) {
	var out map[string]interface{}
	body := map[string]string{"date": date, "notes": notes}
	if err := c.call(ctx, http.MethodPost, leadPath(id)+"/followup", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddActivity(ctx context.Context, id string, activity map[string]interface{}) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.call(ctx, http.MethodPost, leadPath(id)+"/activities", activity, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type BulkResult struct {
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	NotFound int      `json:"not_found"`
	Errors   []string `json:"errors,omitempty"`
}

func (c *Client) BulkUpdate(ctx context.Context, ids []string, updates map[string]interface{}) (*BulkResult, error) {
	var out BulkResult
	body := map[string]interface{}{"ids": ids, "updates": updates}
	if err := c.call(ctx, http.MethodPut, "/leads/bulk-update", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ImportOptions struct {
	Mode      string            // quick (default) or advanced
	Mapping   map[string]string // header -> field, advanced mode only
	CreatedBy string
}

type ImportJob struct {
	ID         string            `json:"id"`
	Mode       string            `json:"mode"`
	FileName   string            `json:"file_name"`
	Mapping    map[string]string `json:"mapping"`
	Status     string            `json:"status"`
	Step       string            `json:"step"`
	Total      int               `json:"total"`
	Processed  int               `json:"processed"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Duplicates int               `json:"duplicates"`
	Errors     []string          `json:"errors"`
}

// Finished reports whether the job has reached its results.
func (j *ImportJob) Finished() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// Import uploads a CSV or Excel file of leads.
func (c *Client) Import(ctx context.Context, fileName string, file io.Reader, opts ImportOptions) (*ImportJob, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if opts.CreatedBy != "" {
		_ = mw.WriteField("created_by", opts.CreatedBy)
	}
	if opts.Mode != "" {
		_ = mw.WriteField("mode", opts.Mode)
	}
	if len(opts.Mapping) > 0 {
		raw, err := json.Marshal(opts.Mapping)
		if err != nil {
			return nil, fmt.Errorf("marshal mapping: %w", err)
		}
		_ = mw.WriteField("mapping", string(raw))
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/leads/import", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out ImportJob
	if err := decodeInto(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ImportStatus(ctx context.Context, jobID string) (*ImportJob, error) {
	var out ImportJob
	if err := c.call(ctx, http.MethodGet, "/leads/import/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export returns the filtered leads as CSV.
func (c *Client) Export(ctx context.Context, f LeadFilters) ([]byte, error) {
	qs, err := f.encode()
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/leads/export"+qs, nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	return c.do(req)
}

// Fields dropped from a lead before it is cloned. Display values are
// recomputed by the server.
var cloneStripped = []string{
	"id", "created_at", "updated_at", "enquiry_no", "converted_project_id",
	"organization_id", "created_by", "status_color", "source_icon", "value_display",
}

// Alias fields and the canonical field each stands for.
var leadAliases = map[string]string{
	"name":    "contact_name",
	"company": "company_name",
	"email":   "contact_email",
	"status":  "enquiry_status",
	"source":  "enquiry_type",
	"value":   "estimated_value",
}

// PrepareClone builds the create payload for a copy of original with
// modifications applied. The copy gets a new enquiry number and starts as
// a new, open lead.
func PrepareClone(original Lead, modifications map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(original)+len(modifications))
	for k, v := range original {
		out[k] = v
	}
	for _, k := range cloneStripped {
		delete(out, k)
	}
	for alias := range leadAliases {
		delete(out, alias)
	}

	out["enquiry_no"] = util.NewEnquiryNo()
	out["enquiry_status"] = "New"
	out["project_status"] = "Open"

	for k, v := range modifications {
		if canonical, ok := leadAliases[k]; ok {
			delete(out, canonical)
		}
		out[k] = v
	}
	return out
}

// Clone fetches a lead and creates a copy of it with modifications applied.
func (c *Client) Clone(ctx context.Context, id string, modifications map[string]interface{}) (Lead, error) {
	original, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch original: %w", err)
	}
	return c.Create(ctx, PrepareClone(original, modifications))
}
