package records

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/njoerd114/medtrack/internal/model"
)

var (
	// ErrInvalidHospital is returned when a hospital draft lacks a name or
	// location.
	ErrInvalidHospital = errors.New("invalid hospital")

	// ErrInvalidVisit is returned when a visit draft is missing a required
	// field or carries a malformed date.
	ErrInvalidVisit = errors.New("invalid visit")
)

// HospitalDraft is the user-supplied part of a new hospital.
type HospitalDraft struct {
	Name     string
	Location string
}

// VisitDraft is the user-supplied part of a visit. Identifier and
// LastUpdated are assigned by [Handlers.SaveVisit].
type VisitDraft struct {
	HospitalID    string
	VisitDate     string
	PatientName   string
	PhoneNumber   string
	Disease       string
	Findings      string
	NextVisitDate string
	Comments      string
}

// DraftFromVisit returns the editable fields of an existing visit.
func DraftFromVisit(v model.PatientVisit) VisitDraft {
	return VisitDraft{
		HospitalID:    v.HospitalID,
		VisitDate:     v.VisitDate,
		PatientName:   v.PatientName,
		PhoneNumber:   v.PhoneNumber,
		Disease:       v.Disease,
		Findings:      v.Findings,
		NextVisitDate: v.NextVisitDate,
		Comments:      v.Comments,
	}
}

// Handlers applies domain mutations to a [Container]. Each successful
// mutation commits a new full snapshot.
type Handlers struct {
	c     *Container
	now   func() time.Time
	newID func() string
}

// Option configures [Handlers].
type Option func(*Handlers)

// WithClock overrides the time source used for createdAt/lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// WithIDGenerator overrides the identifier generator (UUIDv4 by default).
func WithIDGenerator(gen func() string) Option {
	return func(h *Handlers) { h.newID = gen }
}

// NewHandlers creates Handlers operating on c.
func NewHandlers(c *Container, opts ...Option) *Handlers {
	h := &Handlers{
		c:     c,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddHospital assigns a fresh identifier and creation time and appends the
// hospital to the collection.
func (h *Handlers) AddHospital(d HospitalDraft) (model.Hospital, error) {
	name := strings.TrimSpace(d.Name)
	location := strings.TrimSpace(d.Location)
	if name == "" || location == "" {
		return model.Hospital{}, fmt.Errorf("%w: name and location are required", ErrInvalidHospital)
	}

	hosp := model.Hospital{
		ID:        h.newID(),
		Name:      name,
		Location:  location,
		CreatedAt: h.now().UTC(),
	}
	h.c.update(func(s *model.Snapshot) bool {
		s.Hospitals = append(s.Hospitals, hosp)
		return true
	})
	return hosp, nil
}

// SaveVisit stores a visit. When existingID names a visit in the collection
// that record is replaced in place, keeping its position; otherwise the draft
// becomes a new visit with a fresh identifier, inserted at the front.
// LastUpdated is always stamped with the current time.
func (h *Handlers) SaveVisit(d VisitDraft, existingID string) (model.PatientVisit, error) {
	if err := validateVisit(d); err != nil {
		return model.PatientVisit{}, err
	}

	visit := model.PatientVisit{
		HospitalID:    d.HospitalID,
		VisitDate:     d.VisitDate,
		PatientName:   strings.TrimSpace(d.PatientName),
		PhoneNumber:   strings.TrimSpace(d.PhoneNumber),
		Disease:       d.Disease,
		Findings:      d.Findings,
		NextVisitDate: d.NextVisitDate,
		Comments:      d.Comments,
		LastUpdated:   h.now().UTC(),
	}

	h.c.update(func(s *model.Snapshot) bool {
		if existingID != "" {
			if i := s.VisitIndex(existingID); i >= 0 {
				visit.ID = existingID
				s.Visits[i] = visit
				return true
			}
		}
		visit.ID = h.newID()
		s.Visits = append([]model.PatientVisit{visit}, s.Visits...)
		return true
	})
	return visit, nil
}

// DeleteVisit removes the visit with the given identifier. It reports whether
// a visit was removed; deleting an unknown identifier changes nothing and
// commits nothing.
func (h *Handlers) DeleteVisit(id string) bool {
	removed := false
	h.c.update(func(s *model.Snapshot) bool {
		i := s.VisitIndex(id)
		if i < 0 {
			return false
		}
		s.Visits = append(s.Visits[:i], s.Visits[i+1:]...)
		removed = true
		return true
	})
	return removed
}

// Visit looks up a visit by identifier in the current snapshot.
func (h *Handlers) Visit(id string) (model.PatientVisit, bool) {
	s := h.c.Snapshot()
	if i := s.VisitIndex(id); i >= 0 {
		return s.Visits[i], true
	}
	return model.PatientVisit{}, false
}

func validateVisit(d VisitDraft) error {
	var missing []string
	if d.HospitalID == "" {
		missing = append(missing, "hospital")
	}
	if d.VisitDate == "" {
		missing = append(missing, "visit date")
	}
	if strings.TrimSpace(d.PatientName) == "" {
		missing = append(missing, "patient name")
	}
	if strings.TrimSpace(d.PhoneNumber) == "" {
		missing = append(missing, "phone number")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidVisit, strings.Join(missing, ", "))
	}

	if _, err := time.Parse(model.DateLayout, d.VisitDate); err != nil {
		return fmt.Errorf("%w: visit date %q is not YYYY-MM-DD", ErrInvalidVisit, d.VisitDate)
	}
	if d.NextVisitDate != "" {
		if _, err := time.Parse(model.DateLayout, d.NextVisitDate); err != nil {
			return fmt.Errorf("%w: next visit date %q is not YYYY-MM-DD", ErrInvalidVisit, d.NextVisitDate)
		}
	}
	return nil
}
