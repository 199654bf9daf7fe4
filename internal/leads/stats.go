package leads

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
)

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

type PipelineStage struct {
	Status       string        `json:"status"`
	Color        string        `json:"color"`
	Count        int64         `json:"count"`
	Value        float64       `json:"value"`
	ValueDisplay string        `json:"value_display"`
	Leads        []models.Lead `json:"leads"`
}

type SourceSummary struct {
	Source       string  `json:"source"`
	Icon         string  `json:"icon"`
	Count        int64   `json:"count"`
	Converted    int64   `json:"converted"`
	Value        float64 `json:"value"`
	ValueDisplay string  `json:"value_display"`
}

// maxStageLeads caps the cards returned per pipeline column.
const maxStageLeads = 50

type groupRow struct {
	GroupKey   string
	LeadCount  int64
	TotalValue float64
}

func (s *Service) groupBy(ctx context.Context, orgID uuid.UUID, column string) ([]groupRow, error) {
	var rows []groupRow
	err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Select(column+" AS group_key, COUNT(*) AS lead_count, COALESCE(SUM(estimated_value), 0) AS total_value").
		Where("organization_id = ?", orgID).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("grouping leads by %s: %w", column, err)
	}
	return rows, nil
}

func (s *Service) Stats(ctx context.Context, orgID uuid.UUID) (*Stats, error) {
	stats := &Stats{
		ByStatus: make(map[string]int64),
		BySource: make(map[string]int64),
	}

	byStatus, err := s.groupBy(ctx, orgID, "enquiry_status")
	if err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.Total += row.LeadCount
		stats.TotalValue += row.TotalValue
		stats.ByStatus[row.GroupKey] += row.LeadCount
		switch c, _ := CanonicalStatus(row.GroupKey); c {
		case StatusConverted:
			stats.Converted += row.LeadCount
		case StatusLost:
			stats.Lost += row.LeadCount
		}
	}

	bySource, err := s.groupBy(ctx, orgID, "enquiry_type")
	if err != nil {
		return nil, err
	}
	for _, row := range bySource {
		key := row.GroupKey
		if key == "" {
			key = "unknown"
		}
		stats.BySource[key] += row.LeadCount
	}

	var valued struct {
		ValuedCount int64
		AvgValue    float64
	}
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Select("COUNT(estimated_value) AS valued_count, COALESCE(AVG(estimated_value), 0) AS avg_value").
		Where("organization_id = ?", orgID).
		Scan(&valued).Error; err != nil {
		return nil, fmt.Errorf("averaging lead value: %w", err)
	}
	stats.AverageValue = math.Round(valued.AvgValue*100) / 100

	if stats.Total > 0 {
		stats.ConversionRate = math.Round(float64(stats.Converted)/float64(stats.Total)*1000) / 10
	}

	if err := s.scoped(ctx, orgID, Filter{FollowUpDue: true}).Count(&stats.FollowUpsDue).Error; err != nil {
		return nil, fmt.Errorf("counting due follow-ups: %w", err)
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("organization_id = ? AND created_at >= ?", orgID, monthStart).
		Count(&stats.NewThisMonth).Error; err != nil {
		return nil, fmt.Errorf("counting new leads: %w", err)
	}

	return stats, nil
}

// Pipeline groups leads by status in display order, with totals per stage.
func (s *Service) Pipeline(ctx context.Context, orgID uuid.UUID) ([]PipelineStage, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("updated_at DESC").
		Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("loading pipeline: %w", err)
	}

	stages := make(map[string]*PipelineStage)
	order := append([]string(nil), StageOrder...)
	for _, l := range leads {
		key := l.EnquiryStatus
		if c, ok := CanonicalStatus(key); ok {
			key = c
		}
		st, ok := stages[key]
		if !ok {
			st = &PipelineStage{Status: key, Color: StatusColor(key), Leads: []models.Lead{}}
			stages[key] = st
			if !contains(order, key) {
				order = append(order, key)
			}
		}
		st.Count++
		if l.EstimatedValue != nil {
			st.Value += *l.EstimatedValue
		}
		if len(st.Leads) < maxStageLeads {
			st.Leads = append(st.Leads, l)
		}
	}

	out := make([]PipelineStage, 0, len(order))
	for _, key := range order {
		st, ok := stages[key]
		if !ok {
			st = &PipelineStage{Status: key, Color: StatusColor(key), Leads: []models.Lead{}}
		}
		st.ValueDisplay = FormatCurrency(st.Value)
		out = append(out, *st)
	}
	return out, nil
}

// Sources summarizes leads per enquiry type, largest first.
func (s *Service) Sources(ctx context.Context, orgID uuid.UUID) ([]SourceSummary, error) {
	var rows []struct {
		Source     string
		LeadCount  int64
		Converted  int64
		TotalValue float64
	}
	err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Select("enquiry_type AS source, COUNT(*) AS lead_count, "+
			"SUM(CASE WHEN enquiry_status = ? THEN 1 ELSE 0 END) AS converted, "+
			"COALESCE(SUM(estimated_value), 0) AS total_value", StatusConverted).
		Where("organization_id = ?", orgID).
		Group("enquiry_type").
		Order("lead_count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarizing sources: %w", err)
	}

	out := make([]SourceSummary, len(rows))
	for i, r := range rows {
		name := r.Source
		if name == "" {
			name = "unknown"
		}
		out[i] = SourceSummary{
			Source:       name,
			Icon:         SourceIcon(r.Source),
			Count:        r.LeadCount,
			Converted:    r.Converted,
			Value:        r.TotalValue,
			ValueDisplay: FormatCurrency(r.TotalValue),
		}
	}
	return out, nil
}

var exportHeader = []string{
	"Enquiry No", "Company Name", "Contact Name", "Contact Email", "Phone",
	"Enquiry Status", "Enquiry Type", "Project Status", "Project Description",
	"Estimated Value", "City", "State", "Country", "Industry", "Website",
	"Lead Score", "Next Follow Up", "Tags", "Created At",
}

// exportBatch bounds memory while streaming large exports.
const exportBatch = 500

// Export writes every lead matching f as CSV, ignoring pagination.
func (s *Service) Export(ctx context.Context, orgID uuid.UUID, f Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	order := orderClause(f) + ", id"
	for offset := 0; ; offset += exportBatch {
		var batch []models.Lead
		if err := s.scoped(ctx, orgID, f).
			Order(order).
			Offset(offset).
			Limit(exportBatch).
			Find(&batch).Error; err != nil {
			return fmt.Errorf("exporting leads: %w", err)
		}
		for _, l := range batch {
			if err := cw.Write(exportRow(l)); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		if len(batch) < exportBatch {
			return nil
		}
	}
}

func exportRow(l models.Lead) []string {
	value := ""
	if l.EstimatedValue != nil {
		value = strconv.FormatFloat(*l.EstimatedValue, 'f', -1, 64)
	}
	followUp := ""
	if l.NextFollowUp != nil {
		followUp = l.NextFollowUp.UTC().Format("2006-01-02")
	}
	return []string{
		l.EnquiryNo, l.CompanyName, l.ContactName, l.ContactEmail, l.Phone,
		l.EnquiryStatus, l.EnquiryType, l.ProjectStatus, l.ProjectDescription,
		value, l.City, l.State, l.Country, l.Industry, l.Website,
		strconv.Itoa(l.LeadScore), followUp, l.Tags, l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
