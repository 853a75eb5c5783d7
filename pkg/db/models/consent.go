package models

import "time"

// Consent is one user's decision for one purpose. At most one row exists per
// (user_id, purpose_id) pair; writes go through an atomic upsert against the
// uniq_consents_user_purpose constraint.
type Consent struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex:uniq_consents_user_purpose"`
	PurposeID int64     `gorm:"column:purpose_id;not null;uniqueIndex:uniq_consents_user_purpose"`
	Status    bool      `gorm:"column:status;not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Purpose *Purpose `gorm:"foreignKey:PurposeID"`
}

// PurposeName returns the denormalized purpose name when the association is loaded.
func (c *Consent) PurposeName() string {
	if c.Purpose == nil {
		return ""
	}
	return c.Purpose.Name
}
