package record

import "time"

type Record struct {
	ID              int64      `gorm:"primaryKey"`
	OwnerID         int64      `gorm:"column:owner_id;not null;index"`
	Kind            string     `gorm:"column:kind;not null"`
	Title           string     `gorm:"column:title;not null"`
	Year            int        `gorm:"column:year;not null"`
	Classification  string     `gorm:"column:classification;type:text;not null"`
	Stage           string     `gorm:"column:stage;not null"`
	Status          string     `gorm:"column:status;not null;index"`
	Version         int64      `gorm:"column:version;not null;default:1"`
	Hours           *float64   `gorm:"column:hours"`
	BaseHours       *float64   `gorm:"column:base_hours"`
	AnnualHours     *float64   `gorm:"column:annual_hours"`
	RuleVersion     *string    `gorm:"column:rule_version"`
	RejectionReason *string    `gorm:"column:rejection_reason"`
	SubmittedAt     time.Time  `gorm:"column:submitted_at"`
	ApprovedAt      *time.Time `gorm:"column:approved_at"`
	ApprovalYear    *int       `gorm:"column:approval_year;index"`
	RejectedAt      *time.Time `gorm:"column:rejected_at"`
	ReopenedAt      *time.Time `gorm:"column:reopened_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "records"
}
