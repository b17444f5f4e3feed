package roster

import (
	"context"
	"time"
)

// Activity is one logged learning activity for a student; overview scores
// average over them.
type Activity struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StudentID    string    `gorm:"column:student_id;not null;index" json:"student_id"`
	Date         string    `gorm:"column:date" json:"date"`
	Topic        string    `gorm:"column:topic" json:"topic"`
	Difficulty   string    `gorm:"column:difficulty" json:"difficulty"`
	Score        float64   `gorm:"column:score" json:"score"`
	TimeSpentMin int       `gorm:"column:time_spent_min" json:"time_spent_min"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Activity) TableName() string {
	return "activities"
}

// RosterRow is one student line in the overview.
type RosterRow struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Grade            int     `json:"grade"`
	AttendancePct    float64 `json:"attendance_pct"`
	AvgActivityScore float64 `json:"avg_activity_score"`
	InitialScore     float64 `json:"initial_score"`
	Subject          string  `json:"subject"`
	HomeLanguage     string  `json:"home_language"`
}

// Overview is the class snapshot a teacher lands on.
type Overview struct {
	TotalStudents      int         `json:"total_students"`
	TotalTeachers      int         `json:"total_teachers"`
	ClassAttendanceAvg float64     `json:"class_attendance_avg"`
	ClassScoreAvg      float64     `json:"class_score_avg"`
	Roster             []RosterRow `json:"roster"`
}

// StudentRecord is the raw student row the repository hands to the service.
type StudentRecord struct {
	ID               string  `db:"id"`
	Name             string  `db:"name"`
	Grade            int     `db:"grade"`
	PreferredSubject string  `db:"preferred_subject"`
	AttendanceRate   float64 `db:"attendance_rate"`
	HomeLanguage     string  `db:"home_language"`
	MathScore        float64 `db:"math_score"`
	ScienceScore     float64 `db:"science_score"`
	EnglishScore     float64 `db:"english_language_score"`
}

// ServiceAPI is what the HTTP layer sees of the roster.
type ServiceAPI interface {
	TeacherOverview(ctx context.Context, callerID string, requestedSchoolID int64) (*Overview, error)
}

// RepositoryAPI reads scoped roster data. A grade of zero means no grade
// filter.
type RepositoryAPI interface {
	StudentsInScope(ctx context.Context, schoolID int64, grade int) ([]StudentRecord, error)
	ActivityAverages(ctx context.Context, schoolID int64, grade int) (map[string]float64, error)
	TeacherCount(ctx context.Context, schoolID int64) (int, error)
}
