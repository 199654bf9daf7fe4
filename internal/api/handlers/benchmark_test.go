package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/leads"
)

func benchLead(i int) models.Lead {
	value := 150000.0 + float64(i)
	next := time.Now().Add(48 * time.Hour)
	l := models.Lead{
		OrganizationID:     uuid.New(),
		EnquiryNo:          "ENQ-01JB" + strings.Repeat("0", 22),
		CompanyName:        "Acme Industries",
		ContactName:        "Jane Doe",
		ContactEmail:       "jane.doe@acme.example",
		Phone:              "+91 20 5555 0100",
		EnquiryStatus:      leads.StatusWorking,
		EnquiryType:        "Referral",
		ProjectStatus:      leads.ProjectStatusOpen,
		ProjectDescription: "Warehouse automation, phase 1",
		EstimatedValue:     &value,
		City:               "Pune",
		LeadScore:          60,
		NextFollowUp:       &next,
	}
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	l.UpdatedAt = time.Now()
	return l
}

func benchLeadPage(n int) dto.PaginatedResponse {
	items := make([]models.Lead, n)
	for i := range items {
		items[i] = benchLead(i)
	}
	return dto.PaginatedResponse{
		Data:       leads.ToResponses(items),
		Total:      int64(n) * 10,
		Page:       1,
		PerPage:    n,
		TotalPages: 10,
	}
}

func BenchmarkJSONSerialization(b *testing.B) {
	b.Run("ErrorResponse", func(b *testing.B) {
		resp := dto.ErrorResponse{
			Error: "Validation failed",
			Details: map[string]string{
				"name":    "Name is required",
				"company": "Company is required",
			},
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("LeadResponse", func(b *testing.B) {
		resp := leads.ToResponse(benchLead(0))
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("LeadPage", func(b *testing.B) {
		resp := benchLeadPage(50)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})
}

func BenchmarkRequestParsing(b *testing.B) {
	b.Run("LeadPayload", func(b *testing.B) {
		data := []byte(`{"company":"Globex","name":"Hank Scorpio","email":"hank@globex.com","value":"₹1,50,000","source":"Referral","lead_score":70}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var p leads.Payload
			_ = json.Unmarshal(data, &p)
		}
	})

	b.Run("BulkUpdateRequest", func(b *testing.B) {
		ids := make([]uuid.UUID, 100)
		for i := range ids {
			ids[i] = uuid.New()
		}
		data, _ := json.Marshal(map[string]interface{}{
			"ids":     ids,
			"updates": map[string]string{"enquiry_status": "Working"},
		})
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.BulkUpdateRequest
			_ = json.NewDecoder(bytes.NewReader(data)).Decode(&req)
		}
	})
}

func BenchmarkRequestValidation(b *testing.B) {
	b.Run("LeadFormValid", func(b *testing.B) {
		form := leads.LeadForm{Name: "Jane", Company: "Acme", Email: "jane@acme.com", Value: "₹1,50,000", LeadScore: "40"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = leads.ValidateLead(form)
		}
	})

	b.Run("LeadFormInvalid", func(b *testing.B) {
		form := leads.LeadForm{Email: "not-an-email", Value: "lots", LeadScore: "140"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = leads.ValidateLead(form)
		}
	})

	b.Run("CreateActivityRequest", func(b *testing.B) {
		req := dto.CreateActivityRequest{Title: "Site visit", Priority: "high", DueDate: "2026-11-05"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = validate.Struct(&req)
		}
	})

	b.Run("CreateUserRequestInvalid", func(b *testing.B) {
		req := dto.CreateUserRequest{Email: "invalid", Username: "ab", Role: "owner"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = validate.Struct(&req)
		}
	})
}

func BenchmarkLeadFilter(b *testing.B) {
	r := httptest.NewRequest("GET", "/api/leads?status=working&source=referral&city=pune&search=acme&page=2&per_page=25&sort_by=value&sort_order=asc", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = leadFilter(r)
	}
}

func BenchmarkWriteJSON(b *testing.B) {
	b.Run("SmallResponse", func(b *testing.B) {
		resp := dto.SuccessResponse{Message: "Lead deleted"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			writeJSON(httptest.NewRecorder(), http.StatusOK, resp)
		}
	})

	b.Run("LargeResponse", func(b *testing.B) {
		resp := benchLeadPage(50)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			writeJSON(httptest.NewRecorder(), http.StatusOK, resp)
		}
	})
}

func BenchmarkModelConversion(b *testing.B) {
	items := make([]models.Lead, 100)
	for i := range items {
		items[i] = benchLead(i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = leads.ToResponses(items)
	}
}

func BenchmarkParallelJSONSerialization(b *testing.B) {
	resp := benchLeadPage(20)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = json.Marshal(resp)
		}
	})
}
