package domain

import "time"

// LinkAttempt is the audit trail of one linking session. Live session state
// stays in memory; this row only records that an attempt happened and how
// it ended.
type LinkAttempt struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"index"`
	Method    string    `json:"method"`
	Phone     string    `json:"phone"` // masked, last four digits only
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LinkAttempt) TableName() string {
	return "link_attempt"
}
