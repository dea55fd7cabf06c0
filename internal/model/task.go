package model

import "time"

// Task is a card on a board. Recurring templates and their materialized
// instances share this type.
type Task struct {
	ID             uint `gorm:"primaryKey"`
	AccountID      uint `gorm:"index"`
	BoardID        uint `gorm:"index"`
	CreatorID      uint `gorm:"index"`
	Title          string
	Description    string
	DueOn          *Date `gorm:"type:varchar(10);index"`
	Published      bool  `gorm:"default:false;index"`
	PublishedAt    *time.Time
	ClosedAt       *time.Time
	Tags           []Tag           `gorm:"many2many:taggings;joinForeignKey:TaskID;joinReferences:TagID"`
	Assignees      []User          `gorm:"many2many:assignments;joinForeignKey:TaskID;joinReferences:AssigneeID"`
	ChecklistItems []ChecklistItem `gorm:"foreignKey:TaskID"`
	Board          Board           `gorm:"foreignKey:BoardID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Open reports whether the task has not been closed.
func (t Task) Open() bool {
	return t.ClosedAt == nil
}

// Assignment records who was assigned to a task and by whom.
type Assignment struct {
	TaskID     uint `gorm:"primaryKey;autoIncrement:false"`
	AssigneeID uint `gorm:"primaryKey;autoIncrement:false;index"`
	AssignerID uint
	CreatedAt  time.Time
}

// ChecklistItem is one ordered step of a task.
type ChecklistItem struct {
	ID        uint `gorm:"primaryKey"`
	AccountID uint `gorm:"index"`
	TaskID    uint `gorm:"index"`
	Position  int
	Content   string
	Completed bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
