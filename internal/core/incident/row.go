package incident

import "strings"

// Column names a field of the shared row store.
type Column string

const (
	ColID              Column = "id"
	ColPriority        Column = "priority"
	ColCreatedAt       Column = "created_at"
	ColReporter        Column = "reporter"
	ColPosition        Column = "position"
	ColLocation        Column = "location"
	ColEquipment       Column = "equipment"
	ColSubEquipment    Column = "sub_equipment"
	ColFaultType       Column = "fault_type"
	ColDescription     Column = "description"
	ColStatus          Column = "status"
	ColRoutedPosition  Column = "routed_position"
	ColInspector       Column = "inspector"
	ColCompletedAt     Column = "completed_at"
	ColResolutionNotes Column = "resolution_notes"
	ColStage           Column = "stage"
	ColRemarks         Column = "remarks"
	ColClosed          Column = "closed"
)

// Columns is the fixed schema in store order. The id column is last so
// legacy sheets without it keep their original column positions.
var Columns = []Column{
	ColPriority,
	ColCreatedAt,
	ColReporter,
	ColPosition,
	ColLocation,
	ColEquipment,
	ColSubEquipment,
	ColFaultType,
	ColDescription,
	ColStatus,
	ColRoutedPosition,
	ColInspector,
	ColCompletedAt,
	ColResolutionNotes,
	ColStage,
	ColRemarks,
	ColClosed,
	ColID,
}

// headers are the Korean sheet headers used by the original workbook.
var headers = map[Column]string{
	ColPriority:        "구분",
	ColCreatedAt:       "날짜",
	ColReporter:        "작성자",
	ColPosition:        "포지션",
	ColLocation:        "위치",
	ColEquipment:       "설비명",
	ColSubEquipment:    "세부기기",
	ColFaultType:       "장애유형",
	ColDescription:     "장애내용",
	ColStatus:          "접수처리",
	ColRoutedPosition:  "장애등록",
	ColInspector:       "점검자",
	ColCompletedAt:     "완료일자",
	ColResolutionNotes: "점검내용",
	ColStage:           "장애관리",
	ColRemarks:         "비고",
	ColClosed:          "종결",
	ColID:              "ID",
}

// headerAliases are alternate header spellings seen in older sheets.
var headerAliases = map[string]Column{
	"세부장치": ColSubEquipment,
	"긴급도":  ColPriority,
	"상태":   ColStatus,
	"처리상태": ColStatus,
	"종결여부": ColClosed,
	"접수일":  ColCreatedAt,
}

// Header returns the sheet header for c.
func (c Column) Header() string {
	if h, ok := headers[c]; ok {
		return h
	}
	return string(c)
}

// ColumnForHeader resolves a sheet header (or alias) to its column.
func ColumnForHeader(h string) (Column, bool) {
	h = strings.TrimSpace(strings.ReplaceAll(h, "\n", ""))
	for c, name := range headers {
		if name == h {
			return c, true
		}
	}
	if c, ok := headerAliases[h]; ok {
		return c, true
	}
	for _, c := range Columns {
		if string(c) == h {
			return c, true
		}
	}
	return "", false
}

// Headers returns the sheet header row in store order.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header()
	}
	return out
}

// Row is one raw store row keyed by column. Missing columns read as "".
type Row map[Column]string

// Get returns the value of c, or "" when absent.
func (r Row) Get(c Column) string {
	return r[c]
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FieldWrite is one column assignment. Writes are applied in slice order.
type FieldWrite struct {
	Column Column
	Value  string
}

// Precondition lists, per column, the values the row must currently hold
// (any of) for a conditional update to proceed.
type Precondition map[Column][]string

// Matches reports whether row satisfies every clause of p.
func (p Precondition) Matches(row Row) bool {
	for col, allowed := range p {
		cur := strings.TrimSpace(row.Get(col))
		ok := false
		for _, v := range allowed {
			if cur == strings.TrimSpace(v) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
