package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/njoerd114/medtrack/internal/model"
)

// printHospitalTable prints hospitals as a formatted table.
func printHospitalTable(w io.Writer, hospitals []model.Hospital) error {
	if len(hospitals) == 0 {
		fmt.Fprintln(w, "No hospitals found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tNAME\tLOCATION"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, h := range hospitals {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", h.ID, h.Name, h.Location); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return tw.Flush()
}

// printVisitTable prints visits as a formatted table, resolving hospital
// names against snap.
func printVisitTable(w io.Writer, snap model.Snapshot, visits []model.PatientVisit) error {
	if len(visits) == 0 {
		fmt.Fprintln(w, "No visits found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tDATE\tPATIENT\tPHONE\tHOSPITAL\tDIAGNOSIS\tNEXT"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, v := range visits {
		next := v.NextVisitDate
		if next == "" {
			next = "-"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.VisitDate, v.PatientName, v.PhoneNumber,
			snap.HospitalName(v.HospitalID), truncate(v.Disease, 30), next); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return tw.Flush()
}

func printPatientTable(w io.Writer, patients []model.Patient) error {
	if len(patients) == 0 {
		fmt.Fprintln(w, "No patients found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PATIENT\tPHONE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, p := range patients {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Phone); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return tw.Flush()
}

// printVisit prints a single visit in detail.
func printVisit(w io.Writer, snap model.Snapshot, v model.PatientVisit) {
	fmt.Fprintf(w, "Visit %s\n", v.ID)
	fmt.Fprintf(w, "  Date:      %s\n", v.VisitDate)
	fmt.Fprintf(w, "  Hospital:  %s\n", snap.HospitalName(v.HospitalID))
	fmt.Fprintf(w, "  Patient:   %s (%s)\n", v.PatientName, v.PhoneNumber)
	if v.Disease != "" {
		fmt.Fprintf(w, "  Diagnosis: %s\n", v.Disease)
	}
	if v.Findings != "" {
		fmt.Fprintf(w, "  Findings:  %s\n", v.Findings)
	}
	if v.NextVisitDate != "" {
		fmt.Fprintf(w, "  Next:      %s\n", v.NextVisitDate)
	}
	if v.Comments != "" {
		fmt.Fprintf(w, "  Comments:  %s\n", v.Comments)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
