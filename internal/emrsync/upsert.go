package emrsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ward-admin-server/internal/emr"
	"ward-admin-server/internal/logger"
	"ward-admin-server/internal/models"
)

// UpsertOptions configures code handling for the upsert engine.
type UpsertOptions struct {
	// LabItemCodes is the recognized lab item set; results for other codes are dropped.
	LabItemCodes []string
	// StrictCodes fails the admission on an unrecognized sex or prescription type
	// instead of mapping it to UNKNOWN / ORAL.
	StrictCodes bool
}

// Upserter merges one admission bundle into the local store per transaction.
type Upserter struct {
	db      *gorm.DB
	items   itemCodeSet
	strict  bool
	logger  *zap.Logger
	metrics *Metrics
}

// NewUpserter creates an upsert engine writing through db.
func NewUpserter(db *gorm.DB, opts UpsertOptions, log *zap.Logger, metrics *Metrics) *Upserter {
	return &Upserter{
		db:      db,
		items:   newItemCodeSet(opts.LabItemCodes),
		strict:  opts.StrictCodes,
		logger:  logger.OrNop(log),
		metrics: metrics,
	}
}

var vitalUpdateColumns = []string{
	"body_temperature", "pulse_rate", "respiratory_rate",
	"systolic_bp", "diastolic_bp", "sp_o2", "consciousness_jcs", "updated_at",
}

var labUpdateColumns = []string{"value", "unit", "flag", "updated_at"}

// UpsertAdmission writes the bundle's patient, admission, vitals, labs and
// prescriptions in one transaction. On failure nothing of the bundle is kept
// and the error is an *UpsertError carrying the external admission id.
func (u *Upserter) UpsertAdmission(ctx context.Context, b emr.Bundle) (UpsertCounts, error) {
	extID := b.Admission.ExternalAdmissionID
	if err := checkBundle(b); err != nil {
		return UpsertCounts{}, &UpsertError{ExternalAdmissionID: extID, Err: err}
	}

	var counts UpsertCounts
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts = UpsertCounts{}

		patient, err := u.upsertPatient(tx, b.Patient, &counts)
		if err != nil {
			return err
		}
		admission, err := upsertAdmissionRow(tx, b.Admission, patient.ID)
		if err != nil {
			return err
		}
		if counts.Vitals, err = upsertVitals(tx, admission.ID, b.Vitals); err != nil {
			return err
		}
		if counts.Labs, counts.LabsSkipped, err = u.upsertLabs(tx, admission.ID, b.Labs); err != nil {
			return err
		}
		return u.replacePrescriptions(tx, admission.ID, b.Prescriptions, &counts)
	})
	if err != nil {
		return UpsertCounts{}, &UpsertError{ExternalAdmissionID: extID, Err: err}
	}

	if counts.SexDefaulted > 0 {
		u.metrics.normalizationDefault("sex", counts.SexDefaulted)
		u.logger.Debug("Unrecognized sex mapped to UNKNOWN",
			zap.String("external_admission_id", extID),
			zap.String("raw", b.Patient.Sex),
		)
	}
	if counts.PrescriptionTypeDefaulted > 0 {
		u.metrics.normalizationDefault("prescription_type", counts.PrescriptionTypeDefaulted)
		u.logger.Debug("Unrecognized prescription types mapped to ORAL",
			zap.String("external_admission_id", extID),
			zap.Int("count", counts.PrescriptionTypeDefaulted),
		)
	}
	return counts, nil
}

func checkBundle(b emr.Bundle) error {
	switch {
	case strings.TrimSpace(b.Admission.ExternalAdmissionID) == "":
		return errors.New("admission id is empty")
	case strings.TrimSpace(b.Patient.PatientID) == "":
		return errors.New("patient id is empty")
	case b.Admission.AdmittedAt.IsZero():
		return errors.New("admittedAt is missing")
	}
	return nil
}

func (u *Upserter) upsertPatient(tx *gorm.DB, p emr.PatientRecord, counts *UpsertCounts) (*models.Patient, error) {
	birthday, err := parseDate(p.Birthday)
	if err != nil {
		return nil, fmt.Errorf("patient %s birthday: %w", p.PatientID, err)
	}
	sex, ok := normalizeSex(p.Sex)
	if !ok {
		if u.strict {
			return nil, fmt.Errorf("patient %s: unrecognized sex %q", p.PatientID, p.Sex)
		}
		counts.SexDefaulted++
	}

	var patient models.Patient
	err = tx.Where("external_id = ?", p.PatientID).First(&patient).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find patient %s: %w", p.PatientID, err)
	}
	patient.ExternalID = p.PatientID
	patient.Name = p.Name
	patient.NameKana = p.NameKana
	patient.Birthday = birthday
	patient.Sex = sex

	if err := tx.Save(&patient).Error; err != nil {
		return nil, fmt.Errorf("save patient %s: %w", p.PatientID, err)
	}
	return &patient, nil
}

func upsertAdmissionRow(tx *gorm.DB, a emr.AdmissionRecord, patientID string) (*models.Admission, error) {
	var admission models.Admission
	err := tx.Where("external_admission_id = ?", a.ExternalAdmissionID).First(&admission).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find admission: %w", err)
	}
	admission.ExternalAdmissionID = a.ExternalAdmissionID
	admission.PatientID = patientID
	admission.AdmittedAt = a.AdmittedAt.UTC()
	admission.DischargedAt = utcPtr(a.DischargedAt)
	admission.HeightCm = a.HeightCm
	admission.WeightKg = a.WeightKg
	admission.Ward = a.Ward
	admission.Room = a.Room
	admission.Department = a.Department
	admission.AttendingDoctor = a.AttendingDoctor

	if err := tx.Save(&admission).Error; err != nil {
		return nil, fmt.Errorf("save admission: %w", err)
	}
	return &admission, nil
}

func upsertVitals(tx *gorm.DB, admissionID string, records []emr.VitalSignRecord) (int, error) {
	index := make(map[time.Time]int, len(records))
	rows := make([]models.VitalSignObservation, 0, len(records))
	for _, v := range records {
		row := models.VitalSignObservation{
			AdmissionID:      admissionID,
			MeasuredAt:       observationTime(v.MeasuredAt),
			BodyTemperature:  v.BodyTemperature,
			PulseRate:        v.PulseRate,
			RespiratoryRate:  v.RespiratoryRate,
			SystolicBP:       v.SystolicBP,
			DiastolicBP:      v.DiastolicBP,
			SpO2:             v.SpO2,
			ConsciousnessJCS: v.ConsciousnessJCS,
		}
		// last sample wins for a repeated timestamp
		if i, seen := index[row.MeasuredAt]; seen {
			rows[i] = row
			continue
		}
		index[row.MeasuredAt] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "admission_id"}, {Name: "measured_at"}},
		DoUpdates: clause.AssignmentColumns(vitalUpdateColumns),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("upsert vitals: %w", err)
	}
	return len(rows), nil
}

type labKey struct {
	code       string
	measuredAt time.Time
}

func (u *Upserter) upsertLabs(tx *gorm.DB, admissionID string, records []emr.LabResultRecord) (written, skipped int, err error) {
	index := make(map[labKey]int, len(records))
	rows := make([]models.LabResultObservation, 0, len(records))
	for _, l := range records {
		code, ok := u.items.lookup(l.ItemCode)
		if !ok {
			skipped++
			continue
		}
		row := models.LabResultObservation{
			AdmissionID: admissionID,
			ItemCode:    code,
			MeasuredAt:  observationTime(l.MeasuredAt),
			Value:       l.Value,
			Unit:        l.Unit,
			Flag:        l.Flag,
		}
		key := labKey{code: code, measuredAt: row.MeasuredAt}
		if i, seen := index[key]; seen {
			rows[i] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, skipped, nil
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "admission_id"}, {Name: "item_code"}, {Name: "measured_at"}},
		DoUpdates: clause.AssignmentColumns(labUpdateColumns),
	}).Create(&rows).Error
	if err != nil {
		return 0, 0, fmt.Errorf("upsert labs: %w", err)
	}
	return len(rows), skipped, nil
}

func (u *Upserter) replacePrescriptions(tx *gorm.DB, admissionID string, records []emr.PrescriptionRecord, counts *UpsertCounts) error {
	rows := make([]models.PrescriptionRecord, 0, len(records))
	for _, p := range records {
		pt, ok := normalizePrescriptionType(p.PrescriptionType)
		if !ok {
			if u.strict {
				return fmt.Errorf("prescription %q: unrecognized type %q", p.DrugName, p.PrescriptionType)
			}
			counts.PrescriptionTypeDefaulted++
		}
		start, err := parseDate(p.StartDate)
		if err != nil {
			return fmt.Errorf("prescription %q startDate: %w", p.DrugName, err)
		}
		end, err := parseDate(p.EndDate)
		if err != nil {
			return fmt.Errorf("prescription %q endDate: %w", p.DrugName, err)
		}
		rows = append(rows, models.PrescriptionRecord{
			AdmissionID:      admissionID,
			DrugCode:         p.DrugCode,
			DrugName:         p.DrugName,
			PrescriptionType: pt,
			Dose:             p.Dose,
			Frequency:        p.Frequency,
			Quantity:         p.Quantity,
			StartDate:        start,
			EndDate:          end,
		})
	}

	if err := tx.Where("admission_id = ?", admissionID).Delete(&models.PrescriptionRecord{}).Error; err != nil {
		return fmt.Errorf("delete prescriptions: %w", err)
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert prescriptions: %w", err)
		}
	}
	counts.Prescriptions = len(rows)
	return nil
}

// observationTime is the stored form of an observation's natural-key timestamp.
func observationTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func parseDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(emr.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
