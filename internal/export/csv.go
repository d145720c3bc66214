// Package export renders visit records for use outside MedTrack.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/njoerd114/medtrack/internal/model"
)

// Header is the CSV header row.
var Header = []string{
	"Visit Date", "Hospital", "Patient Name", "Phone",
	"Diagnosis", "Findings", "Next Visit", "Comments",
}

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// WriteCSV writes visits as CSV, one row per visit in the given order.
// Hospital names are resolved against snap; unknown hospitals render as
// "Unknown". Line breaks inside free-text fields become spaces so each visit
// stays on one line.
func WriteCSV(w io.Writer, snap model.Snapshot, visits []model.PatientVisit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, v := range visits {
		row := []string{
			v.VisitDate,
			snap.HospitalName(v.HospitalID),
			v.PatientName,
			v.PhoneNumber,
			flatten.Replace(v.Disease),
			flatten.Replace(v.Findings),
			v.NextVisitDate,
			flatten.Replace(v.Comments),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row for visit %s: %w", v.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// FileName returns the conventional export file name for a date, e.g.
// "medtrack-export-2024-03-01.csv".
func FileName(date string) string {
	return "medtrack-export-" + date + ".csv"
}
