package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/leads"
	"gorm.io/gorm"
)

// ProgressEvery is how many rows are processed between progress reports.
const ProgressEvery = 25

// Progress is a snapshot of a running import.
type Progress struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

type ProgressFunc func(Progress)

// Importer inserts the rows of a parsed sheet as leads.
type Importer struct {
	db     *gorm.DB
	leads  *leads.Service
	logger *slog.Logger
}

func NewImporter(db *gorm.DB, leadSvc *leads.Service, logger *slog.Logger) *Importer {
	return &Importer{db: db, leads: leadSvc, logger: logger}
}

// dedupe tracks the leads already present so repeated rows are skipped.
type dedupe struct {
	emails map[string]bool
	pairs  map[string]bool
}

func pairKey(company, contact string) string {
	return strings.ToLower(strings.TrimSpace(company)) + "\x00" + strings.ToLower(strings.TrimSpace(contact))
}

func (d *dedupe) add(company, contact, email string) {
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		d.emails[e] = true
	}
	if strings.TrimSpace(company) != "" && strings.TrimSpace(contact) != "" {
		d.pairs[pairKey(company, contact)] = true
	}
}

func (d *dedupe) seen(company, contact, email string) bool {
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" && d.emails[e] {
		return true
	}
	return d.pairs[pairKey(company, contact)]
}

func (im *Importer) existing(ctx context.Context, orgID uuid.UUID) (*dedupe, error) {
	d := &dedupe{emails: make(map[string]bool), pairs: make(map[string]bool)}

	var rows []struct {
		CompanyName  string
		ContactName  string
		ContactEmail string
	}
	err := im.db.WithContext(ctx).Model(&models.Lead{}).
		Select("company_name, contact_name, contact_email").
		Where("organization_id = ?", orgID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading existing leads: %w", err)
	}

	for _, r := range rows {
		d.add(r.CompanyName, r.ContactName, r.ContactEmail)
	}
	return d, nil
}

// Field order used when a row has several problems.
var messageOrder = map[string]int{
	"name": 0, "company": 1, "email": 2, "value": 3, "lead_score": 4,
}

func joinMessages(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := messageOrder[keys[i]]
		oj, jok := messageOrder[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})

	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = fields[k]
	}
	return strings.Join(msgs, "; ")
}

// Run imports sheet rows for the session's organization. Row numbers in
// errors count the header as row 1. The returned error is set only when the
// import cannot continue; the result then holds the rows handled so far.
func (im *Importer) Run(ctx context.Context, session auth.Session, sheet *Sheet, mapping map[string]string, progress ProgressFunc) (Result, error) {
	result := Result{Total: len(sheet.Rows), Errors: []string{}}

	seen, err := im.existing(ctx, session.OrganizationID)
	if err != nil {
		return result, err
	}

	report := func(processed int) {
		if progress == nil {
			return
		}
		progress(Progress{
			Total:      result.Total,
			Processed:  processed,
			Successful: result.Successful,
			Failed:     result.Failed,
			Duplicates: result.Duplicates,
		})
	}

	for i, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rowNo := i + 2

		p := rowPayload(row, mapping)
		form := rowForm(p)

		if v := leads.ValidateLead(form); !v.IsValid {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNo, joinMessages(v.Errors)))
		} else if seen.seen(form.Company, form.Name, form.Email) {
			result.Duplicates++
		} else if _, err := im.leads.Create(ctx, session, p); err != nil {
			var verr *leads.ValidationError
			if !errors.As(err, &verr) && ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			msg := err.Error()
			if verr != nil {
				msg = joinMessages(verr.Fields)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNo, msg))
		} else {
			result.Successful++
			seen.add(form.Company, form.Name, form.Email)
		}

		if processed := i + 1; processed%ProgressEvery == 0 {
			report(processed)
		}
	}

	report(len(sheet.Rows))

	im.logger.Info("lead import finished",
		"org_id", session.OrganizationID,
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed,
		"duplicates", result.Duplicates,
	)
	return result, nil
}
