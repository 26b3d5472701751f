package orgunit

import "time"

type OrgUnit struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	Code      string    `gorm:"column:code"`
	Kind      string    `gorm:"column:kind;not null"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrgUnit) TableName() string {
	return "org_units"
}

type Department struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Code      string    `gorm:"column:code"`
	FacultyID int64     `gorm:"column:faculty_id;not null;index"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Department) TableName() string {
	return "departments"
}

type AdminRole struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	ScopeKind string    `gorm:"column:scope_kind;not null"`
	ScopeID   *int64    `gorm:"column:scope_id"`
	GrantedBy *int64    `gorm:"column:granted_by"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AdminRole) TableName() string {
	return "admin_roles"
}
