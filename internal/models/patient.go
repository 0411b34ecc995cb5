package models

import (
	"time"
)

// Sex is the closed set of sexes stored for a patient.
type Sex string

const (
	SexMale    Sex = "MALE"
	SexFemale  Sex = "FEMALE"
	SexOther   Sex = "OTHER"
	SexUnknown Sex = "UNKNOWN"
)

// Patient is keyed by the clinical system's patient id and updated in place on every sync.
type Patient struct {
	BaseModel
	ExternalID string     `gorm:"size:64;uniqueIndex;not null" json:"patientId"`
	Name       string     `gorm:"size:200;not null" json:"name"`
	NameKana   string     `gorm:"size:200" json:"nameKana,omitempty"`
	Birthday   *time.Time `gorm:"type:date" json:"birthday,omitempty"`
	Sex        Sex        `gorm:"size:10;not null;default:'UNKNOWN'" json:"sex"`
}
