// internal/domain/expiry/events.go
package expiry

import (
	"fmt"
	"strings"
	"time"

	"rental_expiry_monitor/internal/domain/record"
)

// Strategy selects how remaining days move forward on each pass.
type Strategy string

const (
	// StrategyRecompute derives remaining days from the start date. Idempotent for a fixed day.
	StrategyRecompute Strategy = "recompute"
	// StrategyDecrement subtracts one per pass. Running twice a day subtracts twice.
	StrategyDecrement Strategy = "decrement"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyRecompute, "":
		return StrategyRecompute, nil
	case StrategyDecrement:
		return StrategyDecrement, nil
	default:
		return "", fmt.Errorf("unknown update strategy %q", s)
	}
}

// Label is the human-facing identity of a record.
type Label struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

func (l Label) String() string {
	name := l.Name
	if name == "" {
		name = "未知"
	}
	if l.Address == "" {
		return name
	}
	return name + " - " + l.Address
}

// ExpiryEvent is emitted for each record whose remaining days reached zero.
type ExpiryEvent struct {
	RowIndex  int               `json:"row_index"`
	Label     Label             `json:"label"`
	TotalDays int               `json:"total_days"`
	StartDate time.Time         `json:"start_date"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ResetEvent records the cycle restart of an expired record.
type ResetEvent struct {
	RowIndex  int       `json:"row_index"`
	Label     Label     `json:"label"`
	OldStart  time.Time `json:"old_start"`
	NewStart  time.Time `json:"new_start"`
	TotalDays int       `json:"total_days"`
}

// Update is one remaining-days change applied to an active record.
type Update struct {
	RowIndex int   `json:"row_index"`
	Label    Label `json:"label"`
	Before   int   `json:"before"`
	After    int   `json:"after"`
}

// DataIssue describes a record that was excluded from the pass because a cell could not be coerced.
type DataIssue struct {
	RowIndex int          `json:"row_index"`
	Field    record.Field `json:"field"`
	Header   string       `json:"header"`
	Value    string       `json:"value"`
	Err      error        `json:"-"`
}

func (d *DataIssue) Error() string {
	return fmt.Sprintf("row %d, column %q (%s): %v", d.RowIndex+1, d.Header, d.Field, d.Err)
}

func (d *DataIssue) Unwrap() error {
	return d.Err
}

// Outcome is the result of one reconciliation pass.
type Outcome struct {
	RunDate   time.Time     `json:"run_date"`
	Strategy  Strategy      `json:"strategy"`
	Expired   []ExpiryEvent `json:"expired"`
	Resets    []ResetEvent  `json:"resets"`
	Updates   []Update      `json:"updates"`
	Issues    []*DataIssue  `json:"-"`
	Processed int           `json:"processed"`
}

// Nominal reports the all-clear state: nothing expired on this pass.
func (o *Outcome) Nominal() bool {
	return len(o.Expired) == 0
}

// IssueMessages returns the issues as plain strings, for reports and JSON payloads.
func (o *Outcome) IssueMessages() []string {
	msgs := make([]string, 0, len(o.Issues))
	for _, issue := range o.Issues {
		msgs = append(msgs, issue.Error())
	}
	return msgs
}
