package orgunit

import (
	errors "github.com/frahmantamala/research-hours/internal"
)

// Stage is a point on a record's review path.
type Stage string

const (
	StageDepartmentReview Stage = "department_review"
	StageFacultyReview    Stage = "faculty_review"
	StageUniversityReview Stage = "university_review"
)

func (s Stage) Valid() bool {
	switch s {
	case StageDepartmentReview, StageFacultyReview, StageUniversityReview:
		return true
	}
	return false
}

// Path is the closed set of review routes. Exactly two shapes exist:
// ThreeStagePath for department staff and OneStagePath for office staff.
type Path interface {
	Stages() []Stage
	First() Stage
	Last() Stage
	Next(current Stage) (Stage, bool)
	Contains(stage Stage) bool
	sealed()
}

type ThreeStagePath struct {
	DepartmentID int64
	FacultyID    int64
}

type OneStagePath struct {
	OfficeID int64
}

func (ThreeStagePath) Stages() []Stage {
	return []Stage{StageDepartmentReview, StageFacultyReview, StageUniversityReview}
}

func (ThreeStagePath) First() Stage { return StageDepartmentReview }
func (ThreeStagePath) Last() Stage  { return StageUniversityReview }

func (ThreeStagePath) Next(current Stage) (Stage, bool) {
	switch current {
	case StageDepartmentReview:
		return StageFacultyReview, true
	case StageFacultyReview:
		return StageUniversityReview, true
	}
	return "", false
}

func (ThreeStagePath) Contains(stage Stage) bool {
	return stage.Valid()
}

func (ThreeStagePath) sealed() {}

func (OneStagePath) Stages() []Stage {
	return []Stage{StageUniversityReview}
}

func (OneStagePath) First() Stage { return StageUniversityReview }
func (OneStagePath) Last() Stage  { return StageUniversityReview }

func (OneStagePath) Next(Stage) (Stage, bool) {
	return "", false
}

func (OneStagePath) Contains(stage Stage) bool {
	return stage == StageUniversityReview
}

func (OneStagePath) sealed() {}

// PathFor maps an assignment onto its review path.
func PathFor(a *Assignment) (Path, error) {
	if a == nil {
		return nil, errors.ErrMissingOrgAssignment
	}
	switch {
	case a.InDepartment():
		return ThreeStagePath{DepartmentID: *a.DepartmentID, FacultyID: *a.FacultyID}, nil
	case a.InOffice():
		return OneStagePath{OfficeID: *a.OfficeID}, nil
	}
	return nil, errors.ErrMissingOrgAssignment
}
