package roster

import (
	"context"
	"log/slog"
	"math"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/tenant"
)

// Service builds the scoped class overview. The scope guard decides which
// tenant and grade the caller sees; this service only aggregates.
type Service struct {
	repo   RepositoryAPI
	scopes tenant.ScopeResolver
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, scopes tenant.ScopeResolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, scopes: scopes, logger: logger}
}

// TeacherOverview returns the roster visible to the caller. Super admins see
// the whole requested tenant; a teacher with grade zero is a head teacher
// and also sees all grades; everyone else sees only their own grade.
func (s *Service) TeacherOverview(ctx context.Context, callerID string, requestedSchoolID int64) (*Overview, error) {
	if callerID == "" {
		return nil, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidCredentials)
	}

	scope, err := s.scopes.ResolveScope(ctx, callerID, requestedSchoolID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve caller scope", err)
	}

	gradeFilter := scope.Grade
	if scope.FullTenant() {
		gradeFilter = 0
	}

	students, err := s.repo.StudentsInScope(ctx, scope.SchoolID, gradeFilter)
	if err != nil {
		return nil, internal.NewInternalError("failed to load roster", err)
	}
	if len(students) == 0 {
		return &Overview{Roster: []RosterRow{}}, nil
	}

	averages, err := s.repo.ActivityAverages(ctx, scope.SchoolID, gradeFilter)
	if err != nil {
		return nil, internal.NewInternalError("failed to load activity averages", err)
	}
	teacherCount, err := s.repo.TeacherCount(ctx, scope.SchoolID)
	if err != nil {
		return nil, internal.NewInternalError("failed to count teachers", err)
	}

	rows := make([]RosterRow, 0, len(students))
	var attendanceSum, scoreSum float64
	for _, st := range students {
		avgActivity := averages[st.ID]
		initial := (st.MathScore + st.ScienceScore + st.EnglishScore) / 3

		rows = append(rows, RosterRow{
			ID:               st.ID,
			Name:             st.Name,
			Grade:            st.Grade,
			AttendancePct:    round1(st.AttendanceRate),
			AvgActivityScore: round1(avgActivity),
			InitialScore:     round1(initial),
			Subject:          st.PreferredSubject,
			HomeLanguage:     st.HomeLanguage,
		})
		attendanceSum += st.AttendanceRate
		scoreSum += avgActivity
	}

	n := float64(len(students))
	return &Overview{
		TotalStudents:      len(students),
		TotalTeachers:      teacherCount,
		ClassAttendanceAvg: round1(attendanceSum / n),
		ClassScoreAvg:      round1(scoreSum / n),
		Roster:             rows,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
