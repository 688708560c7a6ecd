package record

// Field is a semantic column of the rental table.
type Field string

const (
	FieldRemaining Field = "remaining_days"
	FieldTotal     Field = "total_days"
	FieldStartDate Field = "start_date"
	FieldName      Field = "name"
	FieldAddress   Field = "address"
)

// RequiredFields must all resolve for a run to proceed, in resolution order.
var RequiredFields = []Field{FieldRemaining, FieldTotal, FieldStartDate}

// OptionalFields only feed the record label.
var OptionalFields = []Field{FieldName, FieldAddress}

// IsKnown reports whether f is one of the tracked fields.
func (f Field) IsKnown() bool {
	for _, known := range append(append([]Field{}, RequiredFields...), OptionalFields...) {
		if f == known {
			return true
		}
	}
	return false
}

// Column is a physical column bound to a field.
type Column struct {
	Index  int    `json:"index"`
	Header string `json:"header"`
}

// ColumnMapping is computed per run and never persisted.
type ColumnMapping map[Field]Column

// Lookup returns the column bound to f, if any.
func (m ColumnMapping) Lookup(f Field) (Column, bool) {
	c, ok := m[f]
	return c, ok
}

// Keywords lists header keywords per field, highest priority first.
type Keywords map[Field][]string

// DefaultKeywords returns the built-in keyword table. Longer, more specific keywords come first
// so a header like "总天数" is not claimed by the bare "天数" of the remaining field.
func DefaultKeywords() Keywords {
	return Keywords{
		FieldRemaining: {"剩余天数", "剩余时间", "到期天数", "过期天数", "天数", "days", "remaining_days", "剩余", "到期", "过期"},
		FieldTotal:     {"总天数", "总时间", "总天", "total_days", "total", "天"},
		FieldStartDate: {"开始时间", "开始日期", "start_date", "start_time", "开始"},
		FieldName:      {"店铺名称", "店铺", "名称", "门店", "name", "store"},
		FieldAddress:   {"地址", "位置", "address", "location"},
	}
}

// Merge returns a copy of k with the fields present in override replaced.
func (k Keywords) Merge(override Keywords) Keywords {
	merged := make(Keywords, len(k))
	for f, words := range k {
		merged[f] = append([]string(nil), words...)
	}
	for f, words := range override {
		if len(words) == 0 {
			continue
		}
		merged[f] = append([]string(nil), words...)
	}
	return merged
}
