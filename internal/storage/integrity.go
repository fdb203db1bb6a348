package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
)

// DefaultDriftThreshold is the primary/backup count difference that raises
// an info alert.
const DefaultDriftThreshold = 10

type Alert struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

type FileStatus struct {
	Path       string     `json:"path"`
	Exists     bool       `json:"exists"`
	Valid      bool       `json:"valid"`
	Count      int        `json:"count"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type IntegrityReport struct {
	CheckedAt   time.Time  `json:"checkedAt"`
	Primary     FileStatus `json:"primary"`
	Backup      FileStatus `json:"backup"`
	UsingBackup bool       `json:"usingBackup"`
	Healthy     bool       `json:"healthy"`
	Alerts      []Alert    `json:"alerts"`
}

// Err is nil for a healthy report and wraps ErrIntegrityDegraded otherwise.
func (r IntegrityReport) Err() error {
	if len(r.Alerts) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		msgs = append(msgs, string(a.Severity)+": "+a.Message)
	}
	return fmt.Errorf("%w: %s", ErrIntegrityDegraded, strings.Join(msgs, "; "))
}

func (r IntegrityReport) CountBySeverity() map[string]int {
	out := map[string]int{}
	for _, a := range r.Alerts {
		out[string(a.Severity)]++
	}
	return out
}

// CheckIntegrity inspects both catalog documents. It only reads.
func (s *CatalogStore) CheckIntegrity(driftThreshold int) IntegrityReport {
	if driftThreshold <= 0 {
		driftThreshold = DefaultDriftThreshold
	}
	report := IntegrityReport{
		CheckedAt: time.Now().UTC(),
		Primary:   inspectFile(s.primary),
		Backup:    inspectFile(s.backup),
		Alerts:    []Alert{},
	}
	p, b := report.Primary, report.Backup

	if !p.Valid && !b.Valid {
		report.add(SeverityCritical, "no_valid_catalog", "neither primary nor backup catalog is readable")
	}
	switch {
	case !p.Exists:
		report.add(SeverityHigh, "primary_missing", "primary catalog file is missing")
	case !p.Valid:
		report.add(SeverityHigh, "primary_invalid", "primary catalog file is invalid: "+p.Error)
	case p.Count == 0:
		report.add(SeverityHigh, "primary_empty", "primary catalog has no products")
	}
	switch {
	case !b.Exists:
		report.add(SeverityMedium, "backup_missing", "backup catalog file is missing")
	case !b.Valid:
		report.add(SeverityMedium, "backup_invalid", "backup catalog file is invalid: "+b.Error)
	}
	if !p.Valid && b.Valid {
		report.UsingBackup = true
		report.add(SeverityHigh, "using_backup", "catalog reads are served from the backup")
	}
	if p.Valid && b.Valid {
		if diff := abs(p.Count - b.Count); diff > driftThreshold {
			report.add(SeverityInfo, "count_drift", fmt.Sprintf("primary has %d products, backup has %d", p.Count, b.Count))
		}
	}

	report.Healthy = len(report.Alerts) == 0
	return report
}

func (r *IntegrityReport) add(sev Severity, code, msg string) {
	r.Alerts = append(r.Alerts, Alert{Severity: sev, Code: code, Message: msg})
}

func inspectFile(path string) FileStatus {
	st := FileStatus{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			st.Exists = true
			st.Error = err.Error()
		}
		return st
	}
	st.Exists = true
	mod := info.ModTime().UTC()
	st.ModifiedAt = &mod

	products, err := readCatalogFile(path)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Valid = true
	st.Count = len(products)
	return st
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
