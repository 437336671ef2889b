package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/faultline/internal/authz"
	"github.com/example/faultline/internal/core/effects"
	"github.com/example/faultline/internal/core/incident"
	"github.com/example/faultline/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// Ensure mocks implement the interfaces
var (
	_ secondary.IncidentStore         = (*mockIncidentStore)(nil)
	_ secondary.SubStores             = (*mockSubStores)(nil)
	_ secondary.RoutingOutbox         = (*mockRoutingOutbox)(nil)
	_ secondary.LogWriter             = (*mockLogWriter)(nil)
	_ secondary.IncidentLogRepository = (*mockIncidentLogRepository)(nil)
	_ secondary.ReportWriter          = (*mockReportWriter)(nil)
)

// mockIncidentStore keeps rows in memory with the conditional update semantics
// of the real stores.
type mockIncidentStore struct {
	mu        sync.Mutex
	rows      []incident.Row
	listErr   error
	appendErr error
	updateErr error
	updates   []secondary.UpdateRequest
	// beforeUpdate runs once before the next update is checked, to simulate a
	// concurrent writer.
	beforeUpdate func(rows []incident.Row)
}

func newMockIncidentStore(rows ...incident.Row) *mockIncidentStore {
	return &mockIncidentStore{rows: rows}
}

func (m *mockIncidentStore) ListAll(ctx context.Context) ([]incident.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]incident.Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *mockIncidentStore) AppendRow(ctx context.Context, row incident.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, row.Clone())
	return nil
}

func (m *mockIncidentStore) UpdateFields(ctx context.Context, req secondary.UpdateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, req)
	if m.updateErr != nil {
		return m.updateErr
	}
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook(m.rows)
	}
	hits := req.Key.FindAll(m.rows)
	switch {
	case len(hits) == 0:
		return fmt.Errorf("incident %s: %w", req.Key, secondary.ErrNotFound)
	case len(hits) > 1:
		return secondary.AmbiguousKey(req.Key, len(hits))
	}
	row := m.rows[hits[0]]
	if !req.Expect.Matches(row) {
		return fmt.Errorf("incident %s: %w", req.Key, secondary.ErrConflict)
	}
	for _, w := range req.Set {
		row[w.Column] = w.Value
	}
	return nil
}

func (m *mockIncidentStore) row(i int) incident.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[i].Clone()
}

// mockSubStores records position copies.
type mockSubStores struct {
	headers   map[string][]string
	rows      map[string][]incident.Row
	ensureErr error
	upsertErr error
}

func newMockSubStores() *mockSubStores {
	return &mockSubStores{
		headers: make(map[string][]string),
		rows:    make(map[string][]incident.Row),
	}
}

func (m *mockSubStores) Ensure(ctx context.Context, name string, header []string) error {
	if m.ensureErr != nil {
		return m.ensureErr
	}
	if _, ok := m.headers[name]; !ok {
		m.headers[name] = header
	}
	return nil
}

func (m *mockSubStores) Upsert(ctx context.Context, name string, row incident.Row) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if _, ok := m.headers[name]; !ok {
		return fmt.Errorf("sub-store %s does not exist", name)
	}
	id := row.Get(incident.ColID)
	for i, r := range m.rows[name] {
		if id != "" && r.Get(incident.ColID) == id {
			m.rows[name][i] = row.Clone()
			return nil
		}
	}
	m.rows[name] = append(m.rows[name], row.Clone())
	return nil
}

func (m *mockSubStores) List(ctx context.Context, name string) ([]incident.Row, error) {
	return m.rows[name], nil
}

// mockRoutingOutbox keeps attempts in memory.
type mockRoutingOutbox struct {
	attempts  map[string]*secondary.RoutingAttemptRecord
	nextID    int
	createErr error
}

func newMockRoutingOutbox() *mockRoutingOutbox {
	return &mockRoutingOutbox{attempts: make(map[string]*secondary.RoutingAttemptRecord), nextID: 1}
}

func (m *mockRoutingOutbox) Create(ctx context.Context, a *secondary.RoutingAttemptRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("RT-%04d", m.nextID)
		m.nextID++
	}
	if a.Status == "" {
		a.Status = secondary.RoutingPending
	}
	if a.Attempts == 0 {
		a.Attempts = 1
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *mockRoutingOutbox) ListPending(ctx context.Context, limit int) ([]*secondary.RoutingAttemptRecord, error) {
	return m.List(ctx, secondary.RoutingPending, limit)
}

func (m *mockRoutingOutbox) List(ctx context.Context, status string, limit int) ([]*secondary.RoutingAttemptRecord, error) {
	var out []*secondary.RoutingAttemptRecord
	for _, a := range m.attempts {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRoutingOutbox) MarkDelivered(ctx context.Context, id string) error {
	a, ok := m.attempts[id]
	if !ok {
		return errors.New("attempt not found")
	}
	a.Status = secondary.RoutingDelivered
	return nil
}

func (m *mockRoutingOutbox) MarkFailed(ctx context.Context, id, lastError string, maxAttempts int) error {
	a, ok := m.attempts[id]
	if !ok {
		return errors.New("attempt not found")
	}
	a.Attempts++
	a.LastError = lastError
	if maxAttempts > 0 && a.Attempts >= maxAttempts {
		a.Status = secondary.RoutingAbandoned
	}
	return nil
}

// mockLogWriter records audit calls.
type mockLogWriter struct {
	creates []string
	updates []string // "key field old->new"
}

func (m *mockLogWriter) LogCreate(ctx context.Context, key string) error {
	m.creates = append(m.creates, key)
	return nil
}

func (m *mockLogWriter) LogUpdate(ctx context.Context, key, field, oldValue, newValue string) error {
	if oldValue == newValue {
		return nil
	}
	m.updates = append(m.updates, fmt.Sprintf("%s %s %s->%s", key, field, oldValue, newValue))
	return nil
}

// mockAuthorizer denies the listed actions.
type mockAuthorizer struct {
	deny map[authz.Action]bool
}

func (m *mockAuthorizer) Authorize(ctx context.Context, action authz.Action) error {
	if m.deny[action] {
		return fmt.Errorf("%w: %s", authz.ErrForbidden, action)
	}
	return nil
}

// mockExecutor records effects without running them.
type mockExecutor struct {
	executed []effects.Effect
	err      error
}

func (m *mockExecutor) Execute(ctx context.Context, rec incident.Record, effs []effects.Effect) error {
	m.executed = append(m.executed, effs...)
	return m.err
}

// mockReportWriter captures the last report.
type mockReportWriter struct {
	path   string
	report secondary.Report
	err    error
}

func (m *mockReportWriter) WriteReport(ctx context.Context, path string, report secondary.Report) error {
	if m.err != nil {
		return m.err
	}
	m.path = path
	m.report = report
	return nil
}

// ============================================================================
// Fixtures
// ============================================================================

const (
	idPending    = "0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a10"
	idInProgress = "0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a11"
	idDone       = "0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a12"
)

func pendingRow() incident.Row {
	return incident.Row{
		incident.ColID:          idPending,
		incident.ColPriority:    incident.RawUrgent,
		incident.ColCreatedAt:   "2025. 10. 20 오후 3:05:39",
		incident.ColReporter:    "이영희",
		incident.ColPosition:    "RACE",
		incident.ColLocation:    "레이싱 트랙",
		incident.ColEquipment:   "신호등",
		incident.ColFaultType:   "전기",
		incident.ColDescription: "점등 불량",
		incident.ColStatus:      incident.RawPending,
	}
}

func inProgressRow() incident.Row {
	return incident.Row{
		incident.ColID:          idInProgress,
		incident.ColPriority:    incident.RawNormal,
		incident.ColCreatedAt:   "2025-10-18 09:12:00",
		incident.ColReporter:    "박민수",
		incident.ColPosition:    "Audio/Video",
		incident.ColLocation:    "메인 홀",
		incident.ColEquipment:   "빔프로젝터",
		incident.ColFaultType:   "영상",
		incident.ColDescription: "화면 깜빡임",
		incident.ColStatus:      "진행중",
		incident.ColInspector:   "김철수",
		incident.ColStage:       incident.StageRegistered,
	}
}

func doneRow() incident.Row {
	return incident.Row{
		incident.ColID:              idDone,
		incident.ColPriority:        incident.RawNormal,
		incident.ColCreatedAt:       "2025/09/02 14:40",
		incident.ColReporter:        "최지훈",
		incident.ColPosition:        "충전설비",
		incident.ColLocation:        "B동",
		incident.ColEquipment:       "충전기 3번",
		incident.ColFaultType:       "전기",
		incident.ColDescription:     "충전 불가",
		incident.ColStatus:          incident.RawDone,
		incident.ColInspector:       "김철수",
		incident.ColCompletedAt:     "2025-09-03 10:00:00",
		incident.ColResolutionNotes: "퓨즈 교체",
		incident.ColStage:           incident.StageHandled,
		incident.ColClosed:          incident.RawClosed,
	}
}

func legacyRow() incident.Row {
	return incident.Row{
		incident.ColPriority:    incident.RawNormal,
		incident.ColCreatedAt:   "2025. 8. 14 오전 11:20:00",
		incident.ColReporter:    "정수진",
		incident.ColPosition:    "LAB",
		incident.ColLocation:    "2층",
		incident.ColEquipment:   "오실로스코프",
		incident.ColFaultType:   "계측",
		incident.ColDescription: "전원 불량",
		incident.ColStatus:      incident.RawPending,
	}
}

func unreadableRow() incident.Row {
	return incident.Row{
		incident.ColID:          "0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a13",
		incident.ColCreatedAt:   "미정",
		incident.ColReporter:    "한지민",
		incident.ColPosition:    "기타",
		incident.ColLocation:    "주차장",
		incident.ColEquipment:   "차단기",
		incident.ColDescription: "바 파손",
		incident.ColStatus:      incident.RawPending,
	}
}

func strPtr(s string) *string { return &s }
