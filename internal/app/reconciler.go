// internal/app/reconciler.go
package app

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/record"
)

var ErrNonPositiveTotal = errors.New("total days must be greater than zero")

// Reconciler applies one expiry pass to a loaded table: update, detect, reset.
// It only touches the remaining-days and start-date columns.
type Reconciler struct {
	strategy       expiry.Strategy
	decrementUntil time.Time
	logger         *logrus.Entry
}

func NewReconciler(strategy expiry.Strategy, decrementUntil time.Time, logger *logrus.Entry) *Reconciler {
	return &Reconciler{
		strategy:       strategy,
		decrementUntil: record.DateOf(decrementUntil),
		logger:         logger,
	}
}

// EffectiveStrategy returns the strategy used for today. Decrement is a time-boxed compatibility
// mode and falls back to recompute once its end date has passed.
func (r *Reconciler) EffectiveStrategy(today time.Time) expiry.Strategy {
	if r.strategy != expiry.StrategyDecrement {
		return expiry.StrategyRecompute
	}
	if !r.decrementUntil.IsZero() && record.DateOf(today).After(r.decrementUntil) {
		r.logger.WithField("decrement_until", r.decrementUntil.Format("2006-01-02")).
			Warn("Decrement mode window has ended, using recompute")
		return expiry.StrategyRecompute
	}
	return expiry.StrategyDecrement
}

// tracked is a coerced row taking part in the pass.
type tracked struct {
	row         int
	label       expiry.Label
	remaining   int
	total       int
	start       time.Time
	startFormat record.DateFormat
}

// Reconcile runs the pass in memory. Rows that fail coercion are reported as issues and left untouched.
func (r *Reconciler) Reconcile(table *record.Table, mapping record.ColumnMapping, today time.Time) *expiry.Outcome {
	today = record.DateOf(today)
	strategy := r.EffectiveStrategy(today)
	outcome := &expiry.Outcome{RunDate: today, Strategy: strategy}

	remCol := mapping[record.FieldRemaining]
	startCol := mapping[record.FieldStartDate]

	// 1. Coerce
	rows := make([]*tracked, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		if table.IsBlankRow(i) {
			continue
		}
		t, issue := r.coerce(table, mapping, i)
		if issue != nil {
			r.logger.WithFields(logrus.Fields{
				"row":    i + 1,
				"column": issue.Header,
				"value":  issue.Value,
			}).Warnf("Skipping record: %v", issue.Err)
			outcome.Issues = append(outcome.Issues, issue)
			continue
		}
		if t.remaining < 0 {
			r.logger.WithFields(logrus.Fields{"row": i + 1, "value": t.remaining}).
				Warn("Negative remaining days clamped to 0")
			table.Set(i, remCol.Index, daysCell(table.Cell(i, remCol.Index), 0))
			t.remaining = 0
		}
		rows = append(rows, t)
	}
	outcome.Processed = len(rows)

	// 2. Update active records
	for _, t := range rows {
		if t.remaining <= 0 {
			continue
		}
		next := r.nextRemaining(strategy, t, today)
		if next == t.remaining {
			continue
		}
		table.Set(t.row, remCol.Index, daysCell(table.Cell(t.row, remCol.Index), next))
		outcome.Updates = append(outcome.Updates, expiry.Update{
			RowIndex: t.row,
			Label:    t.label,
			Before:   t.remaining,
			After:    next,
		})
		r.logger.WithFields(logrus.Fields{"row": t.row + 1, "before": t.remaining, "after": next}).
			Debug("Remaining days updated")
		t.remaining = next
	}

	// 3. Detect expiries
	var expired []*tracked
	for _, t := range rows {
		if t.remaining != 0 {
			continue
		}
		expired = append(expired, t)
		outcome.Expired = append(outcome.Expired, expiry.ExpiryEvent{
			RowIndex:  t.row,
			Label:     t.label,
			TotalDays: t.total,
			StartDate: t.start,
			Fields:    table.Fields(t.row),
		})
		r.logger.WithFields(logrus.Fields{"row": t.row + 1, "label": t.label.String()}).Info("Record expired")
	}

	// 4. Reset expired records to a fresh cycle starting today
	for _, t := range expired {
		table.Set(t.row, startCol.Index, record.FormatDate(today, t.startFormat))
		table.Set(t.row, remCol.Index, daysCell(table.Cell(t.row, remCol.Index), t.total))
		outcome.Resets = append(outcome.Resets, expiry.ResetEvent{
			RowIndex:  t.row,
			Label:     t.label,
			OldStart:  t.start,
			NewStart:  today,
			TotalDays: t.total,
		})
		r.logger.WithFields(logrus.Fields{
			"row":       t.row + 1,
			"old_start": t.start.Format("2006-01-02"),
			"new_start": today.Format("2006-01-02"),
			"remaining": t.total,
		}).Info("Record reset")
		t.remaining = t.total
		t.start = today
	}

	return outcome
}

func (r *Reconciler) nextRemaining(strategy expiry.Strategy, t *tracked, today time.Time) int {
	if strategy == expiry.StrategyDecrement {
		if t.remaining <= 1 {
			return 0
		}
		return t.remaining - 1
	}
	next := t.total - record.DaysBetween(t.start, today)
	if next < 0 {
		return 0
	}
	if next > t.total {
		return t.total
	}
	return next
}

func (r *Reconciler) coerce(table *record.Table, mapping record.ColumnMapping, row int) (*tracked, *expiry.DataIssue) {
	issue := func(f record.Field, err error) *expiry.DataIssue {
		col := mapping[f]
		return &expiry.DataIssue{
			RowIndex: row,
			Field:    f,
			Header:   col.Header,
			Value:    table.Cell(row, col.Index).Value,
			Err:      err,
		}
	}

	remaining, err := record.ParseDays(table.Cell(row, mapping[record.FieldRemaining].Index))
	if err != nil {
		return nil, issue(record.FieldRemaining, err)
	}
	total, err := record.ParseDays(table.Cell(row, mapping[record.FieldTotal].Index))
	if err != nil {
		return nil, issue(record.FieldTotal, err)
	}
	if total <= 0 {
		return nil, issue(record.FieldTotal, ErrNonPositiveTotal)
	}
	start, format, err := record.ParseDate(table.Cell(row, mapping[record.FieldStartDate].Index))
	if err != nil {
		return nil, issue(record.FieldStartDate, err)
	}

	return &tracked{
		row:         row,
		label:       labelOf(table, mapping, row),
		remaining:   remaining,
		total:       total,
		start:       start,
		startFormat: format,
	}, nil
}

func labelOf(table *record.Table, mapping record.ColumnMapping, row int) expiry.Label {
	var l expiry.Label
	if col, ok := mapping.Lookup(record.FieldName); ok {
		l.Name = trimmed(table.Cell(row, col.Index))
	}
	if col, ok := mapping.Lookup(record.FieldAddress); ok {
		l.Address = trimmed(table.Cell(row, col.Index))
	}
	return l
}

func trimmed(c record.Cell) string {
	if c.IsBlank() {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// daysCell keeps a day counter in the cell type it was read as.
func daysCell(orig record.Cell, n int) record.Cell {
	if orig.Kind == record.CellText {
		return record.TextCell(strconv.Itoa(n))
	}
	return record.NumberCell(n)
}
