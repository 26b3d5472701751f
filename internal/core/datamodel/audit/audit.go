package audit

import "time"

type Entry struct {
	ID         int64     `gorm:"primaryKey"`
	RecordID   int64     `gorm:"column:record_id;not null;index"`
	ActorID    int64     `gorm:"column:actor_id;not null"`
	Action     string    `gorm:"column:action;not null"`
	FromStage  string    `gorm:"column:from_stage"`
	ToStage    string    `gorm:"column:to_stage"`
	FromStatus string    `gorm:"column:from_status"`
	ToStatus   string    `gorm:"column:to_status;not null"`
	Comment    string    `gorm:"column:comment"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (Entry) TableName() string {
	return "audit_entries"
}
