package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	gorm.Model
	WorkspaceID uint   `gorm:"index;not null"`
	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
	CreatedByID uint

	Workspace Workspace `gorm:"foreignKey:WorkspaceID"`
	CreatedBy User      `gorm:"foreignKey:CreatedByID"`

	Sprints []Sprint `gorm:"foreignKey:ProjectID"`
	Tasks   []Task   `gorm:"foreignKey:ProjectID"`
}

// Sprint is a dated iteration inside a project. StartDate <= EndDate
// is validated at the mutation entry points.
type Sprint struct {
	gorm.Model
	ProjectID uint           `gorm:"index;not null"`
	Name      string         `gorm:"type:varchar(200);not null"`
	StartDate datatypes.Date `gorm:"not null"`
	EndDate   datatypes.Date `gorm:"not null"`
	Status    SprintStatus   `gorm:"type:varchar(20);index;not null;default:upcoming"`

	Project Project `gorm:"foreignKey:ProjectID"`
}
