package alerts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertLevel is how prominently an alert is displayed to its target.
type AlertLevel string

const (
	LevelInfo    AlertLevel = "info"
	LevelWarning AlertLevel = "warning"
	LevelError   AlertLevel = "error"
	LevelSuccess AlertLevel = "success"
)

func (l AlertLevel) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError, LevelSuccess:
		return true
	default:
		return false
	}
}

// User is the account an alert targets.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Username  string    `gorm:"uniqueIndex;size:150" json:"username"`
	Email     string    `gorm:"size:254" json:"email"`
	Admin     bool      `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Alert is a notification shown to a user on their next request. The serial
// id is the cursor column; the uuid is the public primary key.
type Alert struct {
	ID           uint       `gorm:"primaryKey"`
	UUID         uuid.UUID  `gorm:"type:uuid;uniqueIndex"`
	TargetID     uint       `gorm:"index"`
	Target       User       `gorm:"foreignKey:TargetID"`
	Message      string     `gorm:"type:text"`
	Level        AlertLevel `gorm:"size:16"`
	HasBeenShown bool
	WasShownAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Alert) BeforeCreate(_ *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}

	return nil
}

// UserOut is the serialized shape of an alert's target.
type UserOut struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AlertOut is the serialized shape of an alert.
type AlertOut struct {
	UUID         uuid.UUID  `json:"uuid"`
	Target       UserOut    `json:"target"`
	Message      string     `json:"message"`
	Level        AlertLevel `json:"level"`
	HasBeenShown bool       `json:"has_been_shown"`
	WasShownAt   *time.Time `json:"was_shown_at"`
}

func transform(row Alert) AlertOut {
	return AlertOut{
		UUID: row.UUID,
		Target: UserOut{
			Username: row.Target.Username,
			Email:    row.Target.Email,
		},
		Message:      row.Message,
		Level:        row.Level,
		HasBeenShown: row.HasBeenShown,
		WasShownAt:   row.WasShownAt,
	}
}

// NewAlert is the create body for an alert.
type NewAlert struct {
	Target  uint       `json:"target" validate:"required"`
	Message string     `json:"message" validate:"required"`
	Level   AlertLevel `json:"level" validate:"required,oneof=info warning error success"`
}

func (in NewAlert) Row() (*Alert, error) {
	return &Alert{
		TargetID: in.Target,
		Message:  in.Message,
		Level:    in.Level,
	}, nil
}
