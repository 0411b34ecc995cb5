package emr

import (
	"time"
)

// DateLayout is the calendar-date format used on the wire for dates without a time.
const DateLayout = "2006-01-02"

// Bundle is one admission's full clinical payload for a sync window.
type Bundle struct {
	Patient       PatientRecord        `json:"patient"`
	Admission     AdmissionRecord      `json:"admission"`
	Vitals        []VitalSignRecord    `json:"vitals"`
	Labs          []LabResultRecord    `json:"labs"`
	Prescriptions []PrescriptionRecord `json:"prescriptions"`
}

// PatientRecord carries demographics as the clinical system reports them.
type PatientRecord struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	NameKana  string `json:"nameKana,omitempty"`
	Birthday  string `json:"birthday,omitempty"` // YYYY-MM-DD
	Sex       string `json:"sex"`
}

// AdmissionRecord carries the admission header.
type AdmissionRecord struct {
	ExternalAdmissionID string     `json:"admissionId"`
	AdmittedAt          time.Time  `json:"admittedAt"`
	DischargedAt        *time.Time `json:"dischargedAt,omitempty"`
	HeightCm            *float64   `json:"heightCm,omitempty"`
	WeightKg            *float64   `json:"weightKg,omitempty"`
	Ward                string     `json:"ward"`
	Room                string     `json:"room"`
	Department          string     `json:"department,omitempty"`
	AttendingDoctor     string     `json:"attendingDoctor,omitempty"`
}

// VitalSignRecord is one vital-sign sample.
type VitalSignRecord struct {
	MeasuredAt       time.Time `json:"measuredAt"`
	BodyTemperature  *float64  `json:"bodyTemperature,omitempty"`
	PulseRate        *int      `json:"pulseRate,omitempty"`
	RespiratoryRate  *int      `json:"respiratoryRate,omitempty"`
	SystolicBP       *int      `json:"systolicBp,omitempty"`
	DiastolicBP      *int      `json:"diastolicBp,omitempty"`
	SpO2             *int      `json:"spO2,omitempty"`
	ConsciousnessJCS string    `json:"consciousnessJcs,omitempty"`
}

// LabResultRecord is one lab value.
type LabResultRecord struct {
	ItemCode   string    `json:"itemCode"`
	MeasuredAt time.Time `json:"measuredAt"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Flag       string    `json:"flag,omitempty"`
}

// PrescriptionRecord is one current prescription line.
type PrescriptionRecord struct {
	DrugCode         string `json:"drugCode,omitempty"`
	DrugName         string `json:"drugName"`
	PrescriptionType string `json:"prescriptionType"`
	Dose             string `json:"dose,omitempty"`
	Frequency        string `json:"frequency,omitempty"`
	Quantity         int    `json:"quantity"`
	StartDate        string `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate          string `json:"endDate,omitempty"`   // YYYY-MM-DD
}
