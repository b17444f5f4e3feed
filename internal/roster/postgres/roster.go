package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/school-management/internal/roster"
)

// RosterRepository reads scoped roster aggregates over sqlx.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db *sqlx.DB) roster.RepositoryAPI {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) StudentsInScope(ctx context.Context, schoolID int64, grade int) ([]roster.StudentRecord, error) {
	query := `SELECT id, name, grade, preferred_subject, attendance_rate, home_language,
	                 math_score, science_score, english_language_score
	          FROM accounts
	          WHERE legacy_role = 'Student' AND school_id = $1`
	args := []interface{}{schoolID}
	if grade > 0 {
		query += ` AND grade = $2`
		args = append(args, grade)
	}
	query += ` ORDER BY id`

	var students []roster.StudentRecord
	err := r.db.SelectContext(ctx, &students, query, args...)
	return students, err
}

func (r *RosterRepository) ActivityAverages(ctx context.Context, schoolID int64, grade int) (map[string]float64, error) {
	query := `SELECT a.student_id, AVG(a.score) AS avg_score
	          FROM activities a
	          JOIN accounts s ON s.id = a.student_id
	          WHERE s.school_id = $1`
	args := []interface{}{schoolID}
	if grade > 0 {
		query += ` AND s.grade = $2`
		args = append(args, grade)
	}
	query += ` GROUP BY a.student_id`

	type row struct {
		StudentID string  `db:"student_id"`
		AvgScore  float64 `db:"avg_score"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	averages := make(map[string]float64, len(rows))
	for _, rw := range rows {
		averages[rw.StudentID] = rw.AvgScore
	}
	return averages, nil
}

func (r *RosterRepository) TeacherCount(ctx context.Context, schoolID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM accounts WHERE legacy_role = 'Teacher' AND school_id = $1`, schoolID)
	return count, err
}
