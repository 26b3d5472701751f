package ruletable

import "time"

type Snapshot struct {
	Version   string    `gorm:"primaryKey;column:version"`
	Name      string    `gorm:"column:name;not null"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	CreatedBy *int64    `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (Snapshot) TableName() string {
	return "rule_tables"
}
