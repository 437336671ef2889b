package db

import (
	"database/sql"
	"fmt"
)

// SeedFixtures populates the database with development incidents covering
// every status, a legacy row without id and an unparsable date.
func SeedFixtures(database *sql.DB) error {
	rows := []struct {
		id, priority, created, reporter, position, location, equipment, faultType, description, status, inspector, completed, notes, stage, closed string
	}{
		{"0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a10", "긴급", "2025. 10. 20 오후 3:05:39", "이영희", "RACE", "레이싱 트랙", "신호등", "전기", "점등 불량", "접수중", "", "", "", "", ""},
		{"0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a11", "일반", "2025-10-18 09:12:00", "박민수", "Audio/Video", "메인 홀", "빔프로젝터", "영상", "화면 깜빡임", "점검중", "김철수", "", "", "장애 등록", ""},
		{"0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a12", "일반", "2025/09/02 14:40", "최지훈", "충전설비", "B동", "충전기 3번", "전기", "충전 불가", "완료", "김철수", "2025-09-03 10:00:00", "퓨즈 교체", "장애 처리", "종결"},
		{"", "일반", "2025. 8. 14 오전 11:20:00", "정수진", "LAB", "2층", "오실로스코프", "계측", "전원 불량", "접수중", "", "", "", "", ""},
		{"0199f1c4-7e2a-7d3b-9a55-3f6f0f2d1a13", "일반", "미정", "한지민", "기타", "주차장", "차단기", "기계", "바 파손", "접수중", "", "", "", "", ""},
	}

	for _, r := range rows {
		if _, err := database.Exec(
			`INSERT INTO incident_rows (id, priority, created_at, reporter, position, location, equipment, fault_type, description, status, inspector, completed_at, resolution_notes, stage, closed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.id, r.priority, r.created, r.reporter, r.position, r.location, r.equipment, r.faultType, r.description, r.status, r.inspector, r.completed, r.notes, r.stage, r.closed,
		); err != nil {
			return fmt.Errorf("seed incidents: %w", err)
		}
	}

	return nil
}
