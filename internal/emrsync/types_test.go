package emrsync

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{"six day span", "2026-01-01", "2026-01-07", false},
		{"single day", "2026-01-01", "2026-01-01", false},
		{"seven day span rejected", "2026-01-01", "2026-01-08", true},
		{"end before start", "2026-01-05", "2026-01-01", true},
		{"bad format", "2026/01/01", "2026-01-02", true},
		{"impossible date", "2026-02-30", "2026-03-01", true},
		{"missing end", "2026-01-01", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseDateRange(tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start+"~"+tt.end, r.String())
		})
	}
}

func TestBatchConfigValidate(t *testing.T) {
	for days := 0; days <= 8; days++ {
		err := BatchConfig{DaysBack: days, MaxRetries: 3}.Validate()
		if days >= 1 && days <= 7 {
			assert.NoError(t, err, "daysBack=%d", days)
		} else {
			assert.ErrorIs(t, err, ErrInvalidInput, "daysBack=%d", days)
		}
	}
	for retries := -1; retries <= 11; retries++ {
		err := BatchConfig{DaysBack: 1, MaxRetries: retries}.Validate()
		if retries >= 0 && retries <= 10 {
			assert.NoError(t, err, "maxRetries=%d", retries)
		} else {
			assert.ErrorIs(t, err, ErrInvalidInput, "maxRetries=%d", retries)
		}
	}
}

func TestBatchConfigRangeEndingAt(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	r := BatchConfig{DaysBack: 7}.RangeEndingAt(now)
	assert.Equal(t, "2026-02-23~2026-03-02", r.String())
}

func TestBatchConfigRangeEndingAt_UsesWardTimezone(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	// 00:30 on the 10th in Tokyo, still the 9th in UTC
	now := time.Date(2026, 1, 9, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-01-08~2026-01-09", BatchConfig{DaysBack: 1}.RangeEndingAt(now).String())

	r := BatchConfig{DaysBack: 1, Location: jst}.RangeEndingAt(now)
	assert.Equal(t, "2026-01-09~2026-01-10", r.String())
	assert.Equal(t, jst, r.End.Location())
}

func TestBatchConfigValidate_IgnoresLocation(t *testing.T) {
	assert.NoError(t, BatchConfig{DaysBack: 1, Location: time.UTC}.Validate())
}

func TestSyncErrorMatching(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("run: %w", newError(CodeSyncError, "fetch failed", cause))

	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.NotErrorIs(t, err, ErrImportLocked)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeSyncError, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(cause))
	assert.Equal(t, "SYNC_ERROR: fetch failed: dial tcp: timeout", errors.Unwrap(err).Error())
}

func TestUpsertErrorMatching(t *testing.T) {
	err := &UpsertError{ExternalAdmissionID: "A001", Err: errors.New("constraint failed")}
	assert.ErrorIs(t, err, ErrUpsertFailed)
	assert.NotErrorIs(t, err, ErrSyncFailed)
	assert.Contains(t, err.Error(), `"A001"`)
}
