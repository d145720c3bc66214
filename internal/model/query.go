package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// HospitalSelector chooses either every hospital or a single one. The zero
// value selects all hospitals.
type HospitalSelector struct {
	id string
}

// AllHospitals selects visits from every hospital.
func AllHospitals() HospitalSelector { return HospitalSelector{} }

// HospitalOnly selects visits recorded against the hospital with id.
func HospitalOnly(id string) HospitalSelector { return HospitalSelector{id: id} }

// All reports whether the selector matches every hospital.
func (s HospitalSelector) All() bool { return s.id == "" }

// HospitalID returns the selected hospital and true, or "" and false when the
// selector matches all hospitals.
func (s HospitalSelector) HospitalID() (string, bool) {
	return s.id, s.id != ""
}

// Matches reports whether a visit belongs to the selection.
func (s HospitalSelector) Matches(v PatientVisit) bool {
	return s.All() || v.HospitalID == s.id
}

// String implements fmt.Stringer.
func (s HospitalSelector) String() string {
	if s.All() {
		return "all"
	}
	return s.id
}

// SortField names a sortable visit column.
type SortField string

const (
	SortVisitDate     SortField = "visitDate"
	SortPatientName   SortField = "patientName"
	SortNextVisitDate SortField = "nextVisitDate"
)

// ParseSortField validates a sort column name.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortVisitDate, SortPatientName, SortNextVisitDate:
		return f, nil
	default:
		return "", fmt.Errorf("unknown sort field %q (want visitDate, patientName or nextVisitDate)", s)
	}
}

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortDirection validates a sort direction.
func ParseSortDirection(s string) (SortDirection, error) {
	switch d := SortDirection(strings.ToLower(s)); d {
	case Ascending, Descending:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q (want asc or desc)", s)
	}
}

// VisitQuery filters and orders visits for display. The zero value returns
// every visit sorted by visit date, newest first.
type VisitQuery struct {
	Hospital  HospitalSelector
	Search    string
	SortBy    SortField
	Direction SortDirection
}

// Apply returns the matching visits in display order. The snapshot's own
// insertion order is left untouched.
func (q VisitQuery) Apply(s Snapshot) []PatientVisit {
	needle := strings.ToLower(q.Search)
	out := lo.Filter(s.Visits, func(v PatientVisit, _ int) bool {
		if !q.Hospital.Matches(v) {
			return false
		}
		return strings.Contains(v.PhoneNumber, q.Search) ||
			strings.Contains(strings.ToLower(v.PatientName), needle)
	})

	field := q.SortBy
	if field == "" {
		field = SortVisitDate
	}
	dir := q.Direction
	if dir == "" {
		dir = Descending
	}

	slices.SortStableFunc(out, func(a, b PatientVisit) int {
		c := strings.Compare(sortKey(a, field), sortKey(b, field))
		if dir == Descending {
			return -c
		}
		return c
	})
	return out
}

func sortKey(v PatientVisit, f SortField) string {
	switch f {
	case SortPatientName:
		return v.PatientName
	case SortNextVisitDate:
		return v.NextVisitDate
	default:
		return v.VisitDate
	}
}

// UniquePatientCount returns the number of distinct phone numbers across all
// visits. Two visits sharing a phone number are the same patient regardless
// of the name recorded.
func UniquePatientCount(visits []PatientVisit) int {
	return len(lo.Uniq(lo.Map(visits, func(v PatientVisit, _ int) string {
		return v.PhoneNumber
	})))
}

// Patient is a person known from earlier visits, identified by phone number.
type Patient struct {
	Name  string `json:"patientName"`
	Phone string `json:"phoneNumber"`
}

// KnownPatients returns one entry per phone number, in list order, with the
// name recorded on the first visit that carries it. Visits without a phone
// number are skipped.
func KnownPatients(visits []PatientVisit) []Patient {
	withPhone := lo.Filter(visits, func(v PatientVisit, _ int) bool {
		return v.PhoneNumber != ""
	})
	return lo.Map(lo.UniqBy(withPhone, func(v PatientVisit) string {
		return v.PhoneNumber
	}), func(v PatientVisit, _ int) Patient {
		return Patient{Name: v.PatientName, Phone: v.PhoneNumber}
	})
}

// PatientByPhone returns the patient on record for phone.
func PatientByPhone(visits []PatientVisit, phone string) (Patient, bool) {
	return lo.Find(KnownPatients(visits), func(p Patient) bool {
		return p.Phone == phone
	})
}
