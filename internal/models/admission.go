package models

import (
	"time"
)

// Admission is keyed by the clinical system's admission id. It references its
// Patient and owns the observations and prescriptions imported for it.
type Admission struct {
	BaseModel
	ExternalAdmissionID string     `gorm:"size:64;uniqueIndex;not null" json:"externalAdmissionId"`
	PatientID           string     `gorm:"size:36;index;not null" json:"patientId"`
	AdmittedAt          time.Time  `gorm:"not null" json:"admittedAt"`
	DischargedAt        *time.Time `json:"dischargedAt,omitempty"`
	HeightCm            *float64   `json:"heightCm,omitempty"`
	WeightKg            *float64   `json:"weightKg,omitempty"`
	Ward                string     `gorm:"size:50" json:"ward"`
	Room                string     `gorm:"size:50" json:"room"`
	Department          string     `gorm:"size:100" json:"department,omitempty"`
	AttendingDoctor     string     `gorm:"size:100" json:"attendingDoctor,omitempty"`

	// Relations
	Patient       Patient                `gorm:"foreignKey:PatientID;constraint:OnDelete:RESTRICT" json:"-"`
	Vitals        []VitalSignObservation `gorm:"foreignKey:AdmissionID;constraint:OnDelete:CASCADE" json:"vitals,omitempty"`
	Labs          []LabResultObservation `gorm:"foreignKey:AdmissionID;constraint:OnDelete:CASCADE" json:"labs,omitempty"`
	Prescriptions []PrescriptionRecord   `gorm:"foreignKey:AdmissionID;constraint:OnDelete:CASCADE" json:"prescriptions,omitempty"`
}
