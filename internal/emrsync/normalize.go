package emrsync

import (
	"strings"

	"ward-admin-server/internal/models"
)

var sexes = map[string]models.Sex{
	"MALE":   models.SexMale,
	"FEMALE": models.SexFemale,
	"OTHER":  models.SexOther,
}

var prescriptionTypes = map[string]models.PrescriptionType{
	"ORAL":       models.PrescriptionOral,
	"INJECTION":  models.PrescriptionInjection,
	"TOPICAL":    models.PrescriptionTopical,
	"INHALATION": models.PrescriptionInhalation,
	"INFUSION":   models.PrescriptionInfusion,
}

// normalizeSex maps raw case-insensitively onto MALE, FEMALE or OTHER. Anything
// else yields SexUnknown and ok=false.
func normalizeSex(raw string) (sex models.Sex, ok bool) {
	if s, found := sexes[strings.ToUpper(strings.TrimSpace(raw))]; found {
		return s, true
	}
	return models.SexUnknown, false
}

// normalizePrescriptionType maps raw case-insensitively onto the known routes.
// Anything else yields PrescriptionOral and ok=false.
func normalizePrescriptionType(raw string) (pt models.PrescriptionType, ok bool) {
	if t, found := prescriptionTypes[strings.ToUpper(strings.TrimSpace(raw))]; found {
		return t, true
	}
	return models.PrescriptionOral, false
}

// itemCodeSet is the set of lab items stored; other codes are dropped.
type itemCodeSet map[string]struct{}

func newItemCodeSet(codes []string) itemCodeSet {
	set := make(itemCodeSet, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func (s itemCodeSet) lookup(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	_, ok := s[code]
	return code, ok
}
