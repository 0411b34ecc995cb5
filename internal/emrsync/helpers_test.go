package emrsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ward-admin-server/internal/audit"
	"ward-admin-server/internal/emr"
	"ward-admin-server/internal/models"
)

var testNow = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), models.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	return db
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *memRecorder) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *memRecorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *memRecorder) Last() audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

// stubFetcher returns the scripted response for each call in order; the last
// one repeats.
type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	results [][]emr.Bundle
	errs    []error
	onFetch func()
	ranges  []DateRange
}

func (f *stubFetcher) Fetch(ctx context.Context, start, end time.Time) ([]emr.Bundle, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.ranges = append(f.ranges, DateRange{Start: start, End: end})
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	var err error
	if len(f.errs) > 0 {
		err = f.errs[min(i, len(f.errs)-1)]
	}
	if err != nil {
		return nil, err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	return f.results[min(i, len(f.results)-1)], nil
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func sampleBundle(n int) emr.Bundle {
	admitted := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	return emr.Bundle{
		Patient: emr.PatientRecord{
			PatientID: fmt.Sprintf("P%03d", n),
			Name:      fmt.Sprintf("Patient %d", n),
			NameKana:  "カンジャ",
			Birthday:  "1950-04-01",
			Sex:       "female",
		},
		Admission: emr.AdmissionRecord{
			ExternalAdmissionID: fmt.Sprintf("A%03d", n),
			AdmittedAt:          admitted,
			HeightCm:            floatPtr(158.5),
			WeightKg:            floatPtr(52),
			Ward:                "3W",
			Room:                "301",
			Department:          "Internal Medicine",
		},
		Vitals: []emr.VitalSignRecord{
			{MeasuredAt: admitted.Add(time.Hour), BodyTemperature: floatPtr(36.8), PulseRate: intPtr(72), SpO2: intPtr(97)},
			{MeasuredAt: admitted.Add(5 * time.Hour), BodyTemperature: floatPtr(37.4), PulseRate: intPtr(88)},
		},
		Labs: []emr.LabResultRecord{
			{ItemCode: "WBC", MeasuredAt: admitted.Add(2 * time.Hour), Value: 6.2, Unit: "10^3/uL"},
			{ItemCode: "crp", MeasuredAt: admitted.Add(2 * time.Hour), Value: 1.4, Unit: "mg/dL", Flag: "H"},
		},
		Prescriptions: []emr.PrescriptionRecord{
			{DrugCode: "D001", DrugName: "Amlodipine", PrescriptionType: "oral", Dose: "5mg", Frequency: "1x/day", Quantity: 14, StartDate: "2026-01-05"},
			{DrugCode: "D002", DrugName: "Ceftriaxone", PrescriptionType: "INJECTION", Dose: "1g", Frequency: "q24h", Quantity: 7, StartDate: "2026-01-05", EndDate: "2026-01-11"},
		},
	}
}

// brokenBundle fails the prescription quantity check after the patient and
// admission rows were written, so the whole bundle must roll back.
func brokenBundle(n int) emr.Bundle {
	b := sampleBundle(n)
	b.Prescriptions[0].Quantity = -1
	return b
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
