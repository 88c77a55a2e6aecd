package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Task belongs to a project and optionally to one of its sprints.
type Task struct {
	gorm.Model
	ProjectID   uint            `gorm:"index;not null"`
	SprintID    *uint           `gorm:"index"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Status      TaskStatus      `gorm:"type:varchar(20);index;not null;default:todo"`
	DueDate     *datatypes.Date `gorm:"index"`
	CreatedByID uint

	Project   Project `gorm:"foreignKey:ProjectID"`
	Sprint    *Sprint `gorm:"foreignKey:SprintID"`
	CreatedBy User    `gorm:"foreignKey:CreatedByID"`

	Assignees []User    `gorm:"many2many:task_assignees"`
	Subtasks  []Subtask `gorm:"foreignKey:TaskID"`
	Comments  []Comment `gorm:"foreignKey:TaskID"`
}

type Subtask struct {
	gorm.Model
	TaskID      uint            `gorm:"index;not null"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Status      TaskStatus      `gorm:"type:varchar(20);index;not null;default:todo"`
	DueDate     *datatypes.Date `gorm:"index"`
	CreatedByID uint

	Task      Task `gorm:"foreignKey:TaskID"`
	CreatedBy User `gorm:"foreignKey:CreatedByID"`

	Assignees []User    `gorm:"many2many:subtask_assignees"`
	Comments  []Comment `gorm:"foreignKey:SubtaskID"`
}

// Comment attaches to exactly one of a task or a subtask.
type Comment struct {
	gorm.Model
	TaskID    *uint  `gorm:"index"`
	SubtaskID *uint  `gorm:"index"`
	UserID    uint   `gorm:"not null"`
	Content   string `gorm:"type:text;not null"`

	User User `gorm:"foreignKey:UserID"`
}

// ProgressPercentage is the done/total ratio as a truncated percent.
// Zero total means zero progress, not a division error.
func ProgressPercentage(done, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(done * 100 / total)
}
