package models

import (
	"time"
)

// PrescriptionType is the closed set of administration routes.
type PrescriptionType string

const (
	PrescriptionOral       PrescriptionType = "ORAL"
	PrescriptionInjection  PrescriptionType = "INJECTION"
	PrescriptionTopical    PrescriptionType = "TOPICAL"
	PrescriptionInhalation PrescriptionType = "INHALATION"
	PrescriptionInfusion   PrescriptionType = "INFUSION"
)

// PrescriptionRecord has no natural key; an admission's set is replaced wholesale on every sync.
type PrescriptionRecord struct {
	BaseModel
	AdmissionID      string           `gorm:"size:36;index;not null" json:"admissionId"`
	DrugCode         string           `gorm:"size:20" json:"drugCode,omitempty"`
	DrugName         string           `gorm:"size:200;not null" json:"drugName"`
	PrescriptionType PrescriptionType `gorm:"size:20;not null" json:"prescriptionType"`
	Dose             string           `gorm:"size:50" json:"dose,omitempty"`
	Frequency        string           `gorm:"size:100" json:"frequency,omitempty"`
	Quantity         int              `gorm:"not null;default:0;check:chk_prescription_quantity,quantity >= 0" json:"quantity"`
	StartDate        *time.Time       `gorm:"type:date" json:"startDate,omitempty"`
	EndDate          *time.Time       `gorm:"type:date" json:"endDate,omitempty"`
}
