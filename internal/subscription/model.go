package subscription

import "time"

// Subscription is one registered device/browser of a recipient. The
// endpoint is globally unique; a recipient may own several.
type Subscription struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	RecipientID string    `gorm:"size:64;index;not null" json:"recipient_id"`
	Endpoint    string    `gorm:"uniqueIndex;not null" json:"endpoint"`
	DeviceInfo  string    `gorm:"size:255" json:"device_info,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Subscription) TableName() string { return "push_subscriptions" }
