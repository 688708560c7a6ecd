// internal/app/column_resolver.go
package app

import (
	"fmt"
	"strings"

	"rental_expiry_monitor/internal/domain/record"
)

// ResolveColumns binds the tracked fields to physical columns by header keyword matching.
// A header equal to one of the field's keywords wins first (keywords in priority order).
// Otherwise headers are scanned in table order and each one is tested for containment of the
// field's keywords in priority order; the first hit wins. There is no fallback column.
func ResolveColumns(headers []string, keywords record.Keywords) (record.ColumnMapping, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	mapping := make(record.ColumnMapping)
	var missing []record.Field
	for _, field := range record.RequiredFields {
		col, ok := matchColumn(normalized, keywords[field])
		if !ok {
			missing = append(missing, field)
			continue
		}
		mapping[field] = record.Column{Index: col, Header: strings.TrimSpace(headers[col])}
	}
	if len(missing) > 0 {
		return nil, &UnresolvedColumnError{Fields: missing, Headers: headers}
	}

	claimed := make(map[int]record.Field, len(record.RequiredFields))
	for _, field := range record.RequiredFields {
		col := mapping[field].Index
		if other, taken := claimed[col]; taken {
			return nil, fmt.Errorf("%w: %s and %s both matched %q", ErrColumnConflict, other, field, mapping[field].Header)
		}
		claimed[col] = field
	}

	// Label columns are best effort and never steal a required column.
	for _, field := range record.OptionalFields {
		col, ok := matchColumn(normalized, keywords[field])
		if !ok {
			continue
		}
		if _, taken := claimed[col]; taken {
			continue
		}
		mapping[field] = record.Column{Index: col, Header: strings.TrimSpace(headers[col])}
		claimed[col] = field
	}
	return mapping, nil
}

func matchColumn(headers []string, keywords []string) (int, bool) {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		for i, h := range headers {
			if kw != "" && h == kw {
				return i, true
			}
		}
	}
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(h, kw) {
				return i, true
			}
		}
	}
	return 0, false
}
