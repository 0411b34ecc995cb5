package emrsync

import (
	"time"

	"github.com/go-playground/validator/v10"

	"ward-admin-server/internal/emr"
)

const (
	// LockKeyEMRSync is the lock resource guarding EMR imports.
	LockKeyEMRSync = "emr_sync"
	// DefaultLockTTL must exceed any realistic sync duration.
	DefaultLockTTL = 30 * time.Minute
	// SystemActorID is the holder and audit actor of scheduler-triggered runs.
	SystemActorID = "SYSTEM_BATCH"
	// MaxRangeDays is the exclusive upper bound on endDate - startDate for manual imports.
	MaxRangeDays = 7
)

// Audit actions.
const (
	ActionEMRSync           = "EMR_SYNC"
	ActionEMRSyncFailed     = "EMR_SYNC_FAILED"
	ActionBatchImportFailed = "BATCH_IMPORT_FAILED"
)

var validate = validator.New()

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

type dateRangeInput struct {
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
}

// ParseDateRange validates a manual import window: both dates in YYYY-MM-DD,
// endDate not before startDate, and fewer than MaxRangeDays days apart.
func ParseDateRange(startDate, endDate string) (DateRange, error) {
	if err := validate.Struct(dateRangeInput{StartDate: startDate, EndDate: endDate}); err != nil {
		return DateRange{}, newError(CodeInvalidInput, "startDate and endDate must be YYYY-MM-DD", err)
	}
	start, err := time.Parse(emr.DateLayout, startDate)
	if err != nil {
		return DateRange{}, newError(CodeInvalidInput, "invalid startDate", err)
	}
	end, err := time.Parse(emr.DateLayout, endDate)
	if err != nil {
		return DateRange{}, newError(CodeInvalidInput, "invalid endDate", err)
	}
	if end.Before(start) {
		return DateRange{}, newError(CodeInvalidInput, "endDate must not be before startDate", nil)
	}
	if end.Sub(start) >= MaxRangeDays*24*time.Hour {
		return DateRange{}, newError(CodeInvalidInput, "date range must be shorter than 7 days", nil)
	}
	return DateRange{Start: start, End: end}, nil
}

// String renders the range as "start~end".
func (r DateRange) String() string {
	return r.Start.Format(emr.DateLayout) + "~" + r.End.Format(emr.DateLayout)
}

// BatchConfig parameterizes one scheduled import.
type BatchConfig struct {
	DaysBack   int `validate:"min=1,max=7" json:"daysBack"`
	MaxRetries int `validate:"min=0,max=10" json:"maxRetries"`
	// Location decides which calendar day "today" is. Nil means the clock's own zone.
	Location *time.Location `validate:"-" json:"-"`
}

// Validate rejects out-of-policy batch parameters.
func (c BatchConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return newError(CodeInvalidInput, "daysBack must be 1-7 and maxRetries 0-10", err)
	}
	return nil
}

// RangeEndingAt returns [today - DaysBack, today] for the calendar date of now
// in c.Location.
func (c BatchConfig) RangeEndingAt(now time.Time) DateRange {
	if c.Location != nil {
		now = now.In(c.Location)
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return DateRange{Start: today.AddDate(0, 0, -c.DaysBack), End: today}
}

// UpsertCounts reports what one admission upsert wrote.
type UpsertCounts struct {
	Vitals                    int `json:"vitals"`
	Labs                      int `json:"labs"`
	LabsSkipped               int `json:"labsSkipped"`
	Prescriptions             int `json:"prescriptions"`
	SexDefaulted              int `json:"sexDefaulted"`
	PrescriptionTypeDefaulted int `json:"prescriptionTypeDefaulted"`
}

// SyncResult summarizes one orchestrator run. FailedCount > 0 is still a successful run.
type SyncResult struct {
	RunID                     string    `json:"runId"`
	StartDate                 string    `json:"startDate"`
	EndDate                   string    `json:"endDate"`
	TotalCount                int       `json:"totalCount"`
	SuccessCount              int       `json:"successCount"`
	FailedCount               int       `json:"failedCount"`
	FailedAdmissionIDs        []string  `json:"failedAdmissionIds"`
	VitalsWritten             int       `json:"vitalsWritten"`
	LabsWritten               int       `json:"labsWritten"`
	LabsSkipped               int       `json:"labsSkipped"`
	PrescriptionsWritten      int       `json:"prescriptionsWritten"`
	SexDefaulted              int       `json:"sexDefaulted"`
	PrescriptionTypeDefaulted int       `json:"prescriptionTypeDefaulted"`
	StartedAt                 time.Time `json:"startedAt"`
	CompletedAt               time.Time `json:"completedAt"`
}

func (r *SyncResult) addCounts(c UpsertCounts) {
	r.VitalsWritten += c.Vitals
	r.LabsWritten += c.Labs
	r.LabsSkipped += c.LabsSkipped
	r.PrescriptionsWritten += c.Prescriptions
	r.SexDefaulted += c.SexDefaulted
	r.PrescriptionTypeDefaulted += c.PrescriptionTypeDefaulted
}

func (r *SyncResult) auditData() map[string]any {
	return map[string]any{
		"startDate":                 r.StartDate,
		"endDate":                   r.EndDate,
		"totalCount":                r.TotalCount,
		"successCount":              r.SuccessCount,
		"failedCount":               r.FailedCount,
		"failedAdmissionIds":        r.FailedAdmissionIDs,
		"vitalsWritten":             r.VitalsWritten,
		"labsWritten":               r.LabsWritten,
		"labsSkipped":               r.LabsSkipped,
		"prescriptionsWritten":      r.PrescriptionsWritten,
		"sexDefaulted":              r.SexDefaulted,
		"prescriptionTypeDefaulted": r.PrescriptionTypeDefaulted,
		"startedAt":                 r.StartedAt,
		"completedAt":               r.CompletedAt,
	}
}
