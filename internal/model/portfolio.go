package model

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Portfolio names are unique per owner through idx_portfolios_owner_name.
// The global policy adds idx_portfolios_name_global at migration time.
type Portfolio struct {
	ID          string                      `gorm:"column:id;primaryKey;size:36"`
	OwnerID     string                      `gorm:"column:owner_id;size:128;not null;uniqueIndex:idx_portfolios_owner_name,priority:1"`
	Name        string                      `gorm:"column:name;size:50;not null;uniqueIndex:idx_portfolios_owner_name,priority:2"`
	Category    string                      `gorm:"column:category;size:50;not null"`
	Description string                      `gorm:"column:description;size:500"`
	Followers   datatypes.JSONSlice[string] `gorm:"column:followers;type:jsonb;not null;default:'[]'"`
	CreatedAt   time.Time                   `gorm:"column:created_at"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at"`
}

func (Portfolio) TableName() string { return "portfolios" }

func (p *Portfolio) HasFollower(identity string) bool {
	return slices.Contains(p.Followers, identity)
}
