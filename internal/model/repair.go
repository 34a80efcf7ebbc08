package model

import "time"

// RepairKind identifies which denormalized pair a repair entry re-derives.
type RepairKind string

const (
	// RepairUserEdge re-derives Target.followers from Actor.following.
	RepairUserEdge RepairKind = "user_edge"
	// RepairPortfolioRef re-derives Actor.portfolio_refs from Portfolio.owner_id.
	RepairPortfolioRef RepairKind = "portfolio_ref"
)

// RelationshipRepair is a pair flagged after a half-applied two-sided write.
type RelationshipRepair struct {
	ID        uint       `gorm:"column:id;primaryKey"`
	Kind      RepairKind `gorm:"column:kind;size:32;not null;uniqueIndex:idx_repairs_pair,priority:1"`
	Actor     string     `gorm:"column:actor;size:128;not null;uniqueIndex:idx_repairs_pair,priority:2"`
	Target    string     `gorm:"column:target;size:128;not null;uniqueIndex:idx_repairs_pair,priority:3"`
	Reason    string     `gorm:"column:reason;size:255"`
	CreatedAt time.Time  `gorm:"column:created_at;index"`
}

func (RelationshipRepair) TableName() string { return "relationship_repairs" }
