// Package rollup computes bucketed incident statistics from a record snapshot.
// Every function is pure and safe for concurrent use.
package rollup

import (
	"sort"
	"strings"
	"time"

	"github.com/example/faultline/internal/core/datetime"
	"github.com/example/faultline/internal/core/incident"
)

// BucketBy selects the dimension records are grouped on.
type BucketBy string

const (
	ByMonth     BucketBy = "month"
	ByPosition  BucketBy = "position"
	ByLocation  BucketBy = "location"
	ByCategory  BucketBy = "category"
	ByEquipment BucketBy = "equipment"
	ByPriority  BucketBy = "priority"
)

// ParseBucketBy reads a dimension name, accepting a few aliases.
func ParseBucketBy(s string) (BucketBy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "월":
		return ByMonth, true
	case "position", "포지션":
		return ByPosition, true
	case "location", "위치":
		return ByLocation, true
	case "category", "fault_type", "장애유형":
		return ByCategory, true
	case "equipment", "설비명":
		return ByEquipment, true
	case "priority", "구분", "긴급도":
		return ByPriority, true
	}
	return "", false
}

// Order overrides the default bucket ordering.
type Order int

const (
	OrderDefault   Order = iota // Chronological for months, total desc otherwise
	OrderKeyAsc                 // Bucket key ascending
	OrderTotalDesc              // Total desc, key asc on ties
)

// UnassignedLabel labels the bucket of records with an empty dimension value.
const UnassignedLabel = "(미지정)"

// Options controls Build.
type Options struct {
	BucketBy BucketBy
	Order    Order
	Limit    int // Keep the first Limit buckets; 0 keeps all
	Filter   Filter
}

// Counts is the per-status breakdown of a bucket.
type Counts struct {
	Pending    int
	InProgress int
	Done       int
	Unknown    int // Not part of Total
}

// Rollup is one bucket of statistics.
type Rollup struct {
	Key            string
	Label          string
	Counts         Counts
	Total          int
	CompletionRate float64 // Done/Total*100, 0 when Total is 0
}

type bucket struct {
	key     string
	label   string
	ordinal int
	counts  Counts
}

// Build groups records by opts.BucketBy after applying opts.Filter.
// An empty input yields an empty, non-nil result.
func Build(records []incident.Record, opts Options) []Rollup {
	by := opts.BucketBy
	if by == "" {
		by = ByMonth
	}

	index := map[string]*bucket{}
	var buckets []*bucket
	for _, rec := range opts.Filter.Apply(records) {
		key, label, ordinal := bucketOf(rec, by)
		b, ok := index[key]
		if !ok {
			b = &bucket{key: key, label: label, ordinal: ordinal}
			index[key] = b
			buckets = append(buckets, b)
		}
		tally(&b.counts, rec.Status)
	}

	out := make([]Rollup, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, finish(b.key, b.label, b.counts))
	}

	ordinals := make(map[string]int, len(buckets))
	for _, b := range buckets {
		ordinals[b.key] = b.ordinal
	}
	sortRollups(out, by, opts.Order, ordinals)

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// Summarize computes the overall KPI of records after applying filter.
func Summarize(records []incident.Record, filter Filter) Rollup {
	var c Counts
	for _, rec := range filter.Apply(records) {
		tally(&c, rec.Status)
	}
	return finish("all", "전체", c)
}

// Months lists the distinct month keys of records in chronological order.
func Months(records []incident.Record) []string {
	seen := map[string]bool{}
	var keys []string
	for _, rec := range records {
		k := datetime.MonthKey(rec.CreatedAt)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return monthOrdinal(keys[i]) < monthOrdinal(keys[j]) })
	return keys
}

func tally(c *Counts, s incident.Status) {
	switch s {
	case incident.StatusPending:
		c.Pending++
	case incident.StatusInProgress:
		c.InProgress++
	case incident.StatusDone:
		c.Done++
	default:
		c.Unknown++
	}
}

func finish(key, label string, c Counts) Rollup {
	total := c.Pending + c.InProgress + c.Done
	rate := 0.0
	if total > 0 {
		rate = float64(c.Done) / float64(total) * 100
	}
	return Rollup{Key: key, Label: label, Counts: c, Total: total, CompletionRate: rate}
}

func bucketOf(rec incident.Record, by BucketBy) (key, label string, ordinal int) {
	if by == ByMonth {
		t := rec.CreatedAt.In(datetime.Seoul())
		return datetime.MonthKey(t), datetime.MonthLabel(t), t.Year()*100 + int(t.Month())
	}
	var v string
	switch by {
	case ByPosition:
		v = rec.Position
	case ByLocation:
		v = rec.Location
	case ByCategory:
		v = rec.FaultType
	case ByEquipment:
		v = rec.Equipment
	case ByPriority:
		v = rec.Priority.Raw()
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", UnassignedLabel, 0
	}
	return v, v, 0
}

func monthOrdinal(key string) int {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return 0
	}
	return t.Year()*100 + int(t.Month())
}

func sortRollups(out []Rollup, by BucketBy, order Order, ordinals map[string]int) {
	byTotal := func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	}
	switch {
	case order == OrderKeyAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	case order == OrderTotalDesc:
		sort.SliceStable(out, byTotal)
	case by == ByMonth:
		sort.SliceStable(out, func(i, j int) bool { return ordinals[out[i].Key] < ordinals[out[j].Key] })
	default:
		sort.SliceStable(out, byTotal)
	}
}
