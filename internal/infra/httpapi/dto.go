package httpapi

import (
	"database/sql"

	"rental_expiry_monitor/internal/domain/record"
	"rental_expiry_monitor/internal/domain/run"
)

const dateLayout = "2006-01-02"

// RunDTO is the API shape of a journaled run.
type RunDTO struct {
	ID           string `json:"id"`
	RunDate      string `json:"run_date"`
	Strategy     string `json:"strategy"`
	Status       string `json:"status"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	ExpiredCount int    `json:"expired_count"`
	ResetCount   int    `json:"reset_count"`
	IssueCount   int    `json:"issue_count"`
	BackupPath   string `json:"backup_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// EventDTO is the API shape of a journaled expiry or reset.
type EventDTO struct {
	Kind      string `json:"kind"`
	RowIndex  int    `json:"row_index"`
	Label     string `json:"label"`
	OldStart  string `json:"old_start,omitempty"`
	NewStart  string `json:"new_start,omitempty"`
	TotalDays int    `json:"total_days"`
}

type RunDetailsDTO struct {
	Run    RunDTO     `json:"run"`
	Events []EventDTO `json:"events"`
}

type ColumnsDTO struct {
	Headers []string             `json:"headers"`
	Mapping record.ColumnMapping `json:"mapping,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toRunDTO(r *run.Run) RunDTO {
	return RunDTO{
		ID:           r.ID,
		RunDate:      r.RunDate.Format(dateLayout),
		Strategy:     string(r.Strategy),
		Status:       string(r.Status),
		StartedAt:    r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		FinishedAt:   r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
		ExpiredCount: r.ExpiredCount,
		ResetCount:   r.ResetCount,
		IssueCount:   r.IssueCount,
		BackupPath:   r.BackupPath.String,
		Error:        r.Error.String,
	}
}

func toRunDTOs(runs []*run.Run) []RunDTO {
	dtos := make([]RunDTO, 0, len(runs))
	for _, r := range runs {
		dtos = append(dtos, toRunDTO(r))
	}
	return dtos
}

func toEventDTO(e *run.Event) EventDTO {
	return EventDTO{
		Kind:      string(e.Kind),
		RowIndex:  e.RowIndex,
		Label:     e.Label,
		OldStart:  formatNullDate(e.OldStart),
		NewStart:  formatNullDate(e.NewStart),
		TotalDays: e.TotalDays,
	}
}

func formatNullDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(dateLayout)
}
