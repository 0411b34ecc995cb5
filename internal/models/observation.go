package models

import (
	"time"
)

// VitalSignObservation is unique per (admission, measuredAt); a re-import replaces the values.
type VitalSignObservation struct {
	BaseModel
	AdmissionID      string    `gorm:"size:36;not null;uniqueIndex:idx_vital_admission_measured" json:"admissionId"`
	MeasuredAt       time.Time `gorm:"not null;uniqueIndex:idx_vital_admission_measured" json:"measuredAt"`
	BodyTemperature  *float64  `json:"bodyTemperature,omitempty"`
	PulseRate        *int      `json:"pulseRate,omitempty"`
	RespiratoryRate  *int      `json:"respiratoryRate,omitempty"`
	SystolicBP       *int      `gorm:"column:systolic_bp" json:"systolicBp,omitempty"`
	DiastolicBP      *int      `gorm:"column:diastolic_bp" json:"diastolicBp,omitempty"`
	SpO2             *int      `gorm:"column:sp_o2" json:"spO2,omitempty"`
	ConsciousnessJCS string    `gorm:"size:10" json:"consciousnessJcs,omitempty"`
}

// LabResultObservation is unique per (admission, itemCode, measuredAt).
type LabResultObservation struct {
	BaseModel
	AdmissionID string    `gorm:"size:36;not null;uniqueIndex:idx_lab_admission_item_measured" json:"admissionId"`
	ItemCode    string    `gorm:"size:20;not null;uniqueIndex:idx_lab_admission_item_measured" json:"itemCode"`
	MeasuredAt  time.Time `gorm:"not null;uniqueIndex:idx_lab_admission_item_measured" json:"measuredAt"`
	Value       float64   `json:"value"`
	Unit        string    `gorm:"size:20" json:"unit,omitempty"`
	Flag        string    `gorm:"size:5" json:"flag,omitempty"`
}
