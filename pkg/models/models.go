package models

// Domain models matching the database schema in db/migrations/0001_init.sql

type Role string

const (
	RoleEngineer Role = "engineer"
	RoleManager  Role = "manager"
)

func (r Role) Valid() bool {
	return r == RoleEngineer || r == RoleManager
}

type Seniority string

const (
	SeniorityJunior Seniority = "junior"
	SeniorityMid    Seniority = "mid"
	SenioritySenior Seniority = "senior"
)

func (s Seniority) Valid() bool {
	return s == SeniorityJunior || s == SeniorityMid || s == SenioritySenior
}

type ProjectStatus string

const (
	StatusPlanning  ProjectStatus = "planning"
	StatusActive    ProjectStatus = "active"
	StatusCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	return s == StatusPlanning || s == StatusActive || s == StatusCompleted
}

type ProjectRole string

const (
	ProjectRoleDeveloper ProjectRole = "developer"
	ProjectRoleLead      ProjectRole = "lead"
	ProjectRoleArchitect ProjectRole = "architect"
	ProjectRoleQA        ProjectRole = "qa"
)

func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectRoleDeveloper, ProjectRoleLead, ProjectRoleArchitect, ProjectRoleQA:
		return true
	}
	return false
}

type Engineer struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name" validate:"required"`
	Email       string    `json:"email" db:"email" validate:"required,email"`
	Role        Role      `json:"role" db:"role"`
	Seniority   Seniority `json:"seniority" db:"seniority"`
	Skills      []string  `json:"skills" db:"skills"`
	MaxCapacity int       `json:"max_capacity" db:"max_capacity"`
	Active      bool      `json:"active" db:"active"`
	Version     int64     `json:"version" db:"version"`
	Created     int64     `json:"created" db:"created"`
	Updated     int64     `json:"updated" db:"updated"`
}

type Project struct {
	ID             int64         `json:"id" db:"id"`
	Name           string        `json:"name" db:"name" validate:"required"`
	Description    string        `json:"description" db:"description"`
	StartDate      int64         `json:"start_date" db:"start_date"`
	EndDate        int64         `json:"end_date" db:"end_date"`
	RequiredSkills []string      `json:"required_skills" db:"required_skills"`
	TeamSize       int           `json:"team_size" db:"team_size"`
	Status         ProjectStatus `json:"status" db:"status"`
	ManagerID      int64         `json:"manager_id" db:"manager_id"`
	Created        int64         `json:"created" db:"created"`
	Updated        int64         `json:"updated" db:"updated"`
}

// Assignment is one ledger entry: the authoritative record of one engineer's
// allocation on one project. At most one entry exists per (engineer, project)
// pair; the engineer-side and project-side views are queries over this table.
type Assignment struct {
	ID         int64       `json:"id" db:"id"`
	EngineerID int64       `json:"engineer_id" db:"engineer_id"`
	ProjectID  int64       `json:"project_id" db:"project_id"`
	Allocation int         `json:"allocation" db:"allocation"`
	Role       ProjectRole `json:"role" db:"role"`
	StartDate  *int64      `json:"start_date,omitempty" db:"start_date"`
	EndDate    *int64      `json:"end_date,omitempty" db:"end_date"`
	Created    int64       `json:"created" db:"created"`
	Updated    int64       `json:"updated" db:"updated"`
}
