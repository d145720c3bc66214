// Package model defines the hospital and patient-visit types shared by the
// stores, the sync orchestrator, the backend server and the CLI.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// DateLayout is the calendar-date format used for visit dates.
const DateLayout = "2006-01-02"

// UnknownHospital is rendered when a visit references a hospital that does
// not exist in the current snapshot.
const UnknownHospital = "Unknown"

// Hospital is a clinic location that visits are recorded against. Hospitals
// are add-only: there is no edit or delete path.
type Hospital struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// PatientVisit is a single recorded visit. PhoneNumber doubles as the patient
// identity for de-duplication and search.
type PatientVisit struct {
	ID         string `json:"id"`
	HospitalID string `json:"hospitalId"`

	// VisitDate is a calendar date (YYYY-MM-DD).
	VisitDate   string `json:"visitDate"`
	PatientName string `json:"patientName"`
	PhoneNumber string `json:"phoneNumber"`

	// Disease is the diagnosis text.
	Disease  string `json:"disease"`
	Findings string `json:"findings"`

	// NextVisitDate is optional; empty means no follow-up is scheduled.
	NextVisitDate string `json:"nextVisitDate"`
	Comments      string `json:"comments"`

	// LastUpdated is stamped on every save. It is informational only and
	// never used for conflict resolution.
	LastUpdated time.Time `json:"lastUpdated"`
}

// Snapshot is the full application state at a point in time. It is the unit
// of synchronization: stores and the remote only ever read or write whole
// snapshots.
type Snapshot struct {
	Hospitals []Hospital     `json:"hospitals"`
	Visits    []PatientVisit `json:"visits"`
}

// IsEmpty reports whether both collections are empty.
func (s Snapshot) IsEmpty() bool {
	return len(s.Hospitals) == 0 && len(s.Visits) == 0
}

// Clone returns a deep copy so that callers can hand the snapshot to other
// goroutines without sharing backing arrays.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Hospitals: make([]Hospital, len(s.Hospitals)),
		Visits:    make([]PatientVisit, len(s.Visits)),
	}
	copy(out.Hospitals, s.Hospitals)
	copy(out.Visits, s.Visits)
	return out
}

// Normalize replaces nil collections with empty ones so the snapshot always
// serializes as {"hospitals":[],"visits":[]}.
func (s Snapshot) Normalize() Snapshot {
	if s.Hospitals == nil {
		s.Hospitals = []Hospital{}
	}
	if s.Visits == nil {
		s.Visits = []PatientVisit{}
	}
	return s
}

// ContentHash returns a deterministic SHA-256 hex digest of the snapshot's
// JSON encoding. Two stores holding the same snapshot report the same hash.
func (s Snapshot) ContentHash() string {
	b, _ := json.Marshal(s.Normalize()) //nolint:errcheck // plain structs always marshal
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HospitalName returns the display name of the hospital with the given ID, or
// [UnknownHospital] for a dangling reference.
func (s Snapshot) HospitalName(id string) string {
	for _, h := range s.Hospitals {
		if h.ID == id {
			return h.Name
		}
	}
	return UnknownHospital
}

// VisitIndex returns the position of the visit with the given ID, or -1.
func (s Snapshot) VisitIndex(id string) int {
	for i, v := range s.Visits {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// DefaultHospitals returns the seed list used when neither the remote nor the
// local store holds any hospitals.
func DefaultHospitals(now time.Time) []Hospital {
	return []Hospital{
		{ID: "1", Name: "City Central Hospital", Location: "Main Street", CreatedAt: now},
		{ID: "2", Name: "West Side Clinic", Location: "Business District", CreatedAt: now},
	}
}
