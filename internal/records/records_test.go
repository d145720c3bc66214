package records

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/njoerd114/medtrack/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// newTestHandlers returns handlers with a fixed clock and sequential IDs
// ("id-1", "id-2", ...).
func newTestHandlers(t *testing.T) (*Container, *Handlers) {
	t.Helper()
	c := NewContainer()
	n := 0
	h := NewHandlers(c,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return c, h
}

func validDraft(name string) VisitDraft {
	return VisitDraft{
		HospitalID:  "1",
		VisitDate:   "2024-03-01",
		PatientName: name,
		PhoneNumber: "555-0100",
		Disease:     "Flu",
	}
}

func TestAddHospital(t *testing.T) {
	c, h := newTestHandlers(t)
	c.Load(model.Snapshot{Hospitals: model.DefaultHospitals(fixedNow)})

	var notified []model.Snapshot
	c.Subscribe(func(s model.Snapshot) { notified = append(notified, s) })

	hosp, err := h.AddHospital(HospitalDraft{Name: "North Clinic", Location: "Harbour Road"})
	if err != nil {
		t.Fatalf("AddHospital: %v", err)
	}
	if hosp.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", hosp.ID)
	}
	if !hosp.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", hosp.CreatedAt, fixedNow)
	}

	snap := c.Snapshot()
	if len(snap.Hospitals) != 3 {
		t.Fatalf("len(Hospitals) = %d, want 3", len(snap.Hospitals))
	}
	if snap.Hospitals[2].Name != "North Clinic" {
		t.Errorf("new hospital not appended last: %+v", snap.Hospitals)
	}
	if len(notified) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notified))
	}
	if len(notified[0].Hospitals) != 3 {
		t.Errorf("notified snapshot has %d hospitals, want 3", len(notified[0].Hospitals))
	}
}

func TestAddHospital_Invalid(t *testing.T) {
	c, h := newTestHandlers(t)
	calls := 0
	c.Subscribe(func(model.Snapshot) { calls++ })

	for _, d := range []HospitalDraft{{Name: "", Location: "x"}, {Name: "x", Location: "  "}} {
		if _, err := h.AddHospital(d); !errors.Is(err, ErrInvalidHospital) {
			t.Errorf("AddHospital(%+v) error = %v, want ErrInvalidHospital", d, err)
		}
	}
	if calls != 0 {
		t.Errorf("invalid drafts committed %d times", calls)
	}
}

func TestSaveVisit_NewVisitIsPrepended(t *testing.T) {
	c, h := newTestHandlers(t)

	first, err := h.SaveVisit(validDraft("Alice"), "")
	if err != nil {
		t.Fatalf("SaveVisit: %v", err)
	}
	second, err := h.SaveVisit(validDraft("Bob"), "")
	if err != nil {
		t.Fatalf("SaveVisit: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Visits) != 2 {
		t.Fatalf("len(Visits) = %d, want 2", len(snap.Visits))
	}
	if snap.Visits[0].ID != second.ID || snap.Visits[1].ID != first.ID {
		t.Errorf("order = [%s %s], want [%s %s]", snap.Visits[0].ID, snap.Visits[1].ID, second.ID, first.ID)
	}
	if !snap.Visits[0].LastUpdated.Equal(fixedNow) {
		t.Errorf("LastUpdated = %v, want %v", snap.Visits[0].LastUpdated, fixedNow)
	}
}

func TestSaveVisit_EditReplacesInPlace(t *testing.T) {
	c, h := newTestHandlers(t)
	a, _ := h.SaveVisit(validDraft("Alice"), "")
	b, _ := h.SaveVisit(validDraft("Bob"), "")
	_, _ = h.SaveVisit(validDraft("Carol"), "")

	edit := DraftFromVisit(b)
	edit.Findings = "recovering"
	got, err := h.SaveVisit(edit, b.ID)
	if err != nil {
		t.Fatalf("SaveVisit(edit): %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("edited ID = %q, want %q", got.ID, b.ID)
	}

	snap := c.Snapshot()
	if len(snap.Visits) != 3 {
		t.Fatalf("len(Visits) = %d, want 3", len(snap.Visits))
	}
	// Carol, Bob, Alice: Bob keeps position 1.
	if snap.Visits[1].ID != b.ID || snap.Visits[1].Findings != "recovering" {
		t.Errorf("Visits[1] = %+v, want edited Bob", snap.Visits[1])
	}
	if snap.Visits[2].ID != a.ID {
		t.Errorf("Visits[2].ID = %q, want %q", snap.Visits[2].ID, a.ID)
	}
}

func TestSaveVisit_UnknownExistingIDCreates(t *testing.T) {
	c, h := newTestHandlers(t)
	got, err := h.SaveVisit(validDraft("Alice"), "missing")
	if err != nil {
		t.Fatalf("SaveVisit: %v", err)
	}
	if got.ID == "missing" {
		t.Error("unknown existing ID should not be reused")
	}
	if n := len(c.Snapshot().Visits); n != 1 {
		t.Errorf("len(Visits) = %d, want 1", n)
	}
}

func TestSaveVisit_Validation(t *testing.T) {
	_, h := newTestHandlers(t)

	tests := []struct {
		name   string
		mutate func(*VisitDraft)
	}{
		{"no hospital", func(d *VisitDraft) { d.HospitalID = "" }},
		{"no date", func(d *VisitDraft) { d.VisitDate = "" }},
		{"no name", func(d *VisitDraft) { d.PatientName = " " }},
		{"no phone", func(d *VisitDraft) { d.PhoneNumber = "" }},
		{"bad date", func(d *VisitDraft) { d.VisitDate = "01/03/2024" }},
		{"bad next date", func(d *VisitDraft) { d.NextVisitDate = "soon" }},
	}
	for _, tt := range tests {
		d := validDraft("Alice")
		tt.mutate(&d)
		if _, err := h.SaveVisit(d, ""); !errors.Is(err, ErrInvalidVisit) {
			t.Errorf("%s: error = %v, want ErrInvalidVisit", tt.name, err)
		}
	}
}

func TestDeleteVisit(t *testing.T) {
	c, h := newTestHandlers(t)
	a, _ := h.SaveVisit(validDraft("Alice"), "")
	b, _ := h.SaveVisit(validDraft("Bob"), "")

	calls := 0
	c.Subscribe(func(model.Snapshot) { calls++ })

	if !h.DeleteVisit(a.ID) {
		t.Fatal("DeleteVisit returned false for an existing visit")
	}
	snap := c.Snapshot()
	if len(snap.Visits) != 1 || snap.Visits[0].ID != b.ID {
		t.Errorf("Visits = %+v, want only Bob", snap.Visits)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDeleteVisit_UnknownIsNoOp(t *testing.T) {
	c, h := newTestHandlers(t)
	_, _ = h.SaveVisit(validDraft("Alice"), "")

	calls := 0
	c.Subscribe(func(model.Snapshot) { calls++ })

	if h.DeleteVisit("nope") {
		t.Error("DeleteVisit returned true for an unknown ID")
	}
	if calls != 0 {
		t.Errorf("no-op delete committed %d times", calls)
	}
	if n := len(c.Snapshot().Visits); n != 1 {
		t.Errorf("len(Visits) = %d, want 1", n)
	}
}

func TestContainer_LoadDoesNotNotify(t *testing.T) {
	c := NewContainer()
	calls := 0
	c.Subscribe(func(model.Snapshot) { calls++ })

	c.Load(model.Snapshot{Hospitals: model.DefaultHospitals(fixedNow)})
	if calls != 0 {
		t.Errorf("Load notified %d times, want 0", calls)
	}
	if n := len(c.Snapshot().Hospitals); n != 2 {
		t.Errorf("len(Hospitals) = %d, want 2", n)
	}
}

func TestContainer_SnapshotIsCopy(t *testing.T) {
	c, h := newTestHandlers(t)
	_, _ = h.SaveVisit(validDraft("Alice"), "")

	s := c.Snapshot()
	s.Visits[0].PatientName = "Mallory"

	if got := c.Snapshot().Visits[0].PatientName; got != "Alice" {
		t.Errorf("PatientName = %q, want Alice", got)
	}
}

func TestContainer_Unsubscribe(t *testing.T) {
	c, h := newTestHandlers(t)
	calls := 0
	unsub := c.Subscribe(func(model.Snapshot) { calls++ })

	_, _ = h.SaveVisit(validDraft("Alice"), "")
	unsub()
	_, _ = h.SaveVisit(validDraft("Bob"), "")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestContainer_SubscriberMayReadSnapshot(t *testing.T) {
	c, h := newTestHandlers(t)
	var seen int
	c.Subscribe(func(model.Snapshot) { seen = len(c.Snapshot().Visits) })

	_, _ = h.SaveVisit(validDraft("Alice"), "")
	if seen != 1 {
		t.Errorf("subscriber saw %d visits, want 1", seen)
	}
}
