package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/njoerd114/medtrack/internal/insight"
	"github.com/njoerd114/medtrack/internal/model"
	"github.com/njoerd114/medtrack/internal/records"
)

// queryFlags are the filter and sort flags shared by list, export and stats.
type queryFlags struct {
	hospital string
	search   string
	sortBy   string
	order    string
}

func (q *queryFlags) register(fs *pflag.FlagSet, withSort bool) {
	fs.StringVar(&q.hospital, "hospital", "", "only visits at this hospital ID")
	fs.StringVar(&q.search, "search", "", "match patient name (case-insensitive) or phone number")
	if withSort {
		fs.StringVar(&q.sortBy, "sort", string(model.SortVisitDate), "sort by visitDate, patientName or nextVisitDate")
		fs.StringVar(&q.order, "order", string(model.Descending), "sort direction (asc|desc)")
	}
}

func (q *queryFlags) query() (model.VisitQuery, error) {
	vq := model.VisitQuery{Hospital: model.AllHospitals(), Search: q.search}
	if q.hospital != "" {
		vq.Hospital = model.HospitalOnly(q.hospital)
	}
	if q.sortBy != "" {
		f, err := model.ParseSortField(q.sortBy)
		if err != nil {
			return model.VisitQuery{}, err
		}
		vq.SortBy = f
	}
	if q.order != "" {
		d, err := model.ParseSortDirection(q.order)
		if err != nil {
			return model.VisitQuery{}, err
		}
		vq.Direction = d
	}
	return vq, nil
}

func newVisitsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visits",
		Short: "List, show, record, edit or delete patient visits",
	}
	cmd.AddCommand(
		newVisitsListCmd(g),
		newVisitsShowCmd(g),
		newVisitsAddCmd(g),
		newVisitsEditCmd(g),
		newVisitsDeleteCmd(g),
		newVisitsPatientsCmd(g),
	)
	return cmd
}

func newVisitsListCmd(g *globals) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}
			return g.run(cmd, func(s *session) error {
				snap := s.records.Snapshot()
				visits := q.Apply(snap)
				if g.isJSON() {
					return printJSON(cmd.OutOrStdout(), visits)
				}
				return printVisitTable(cmd.OutOrStdout(), snap, visits)
			})
		},
	}
	qf.register(cmd.Flags(), true)
	return cmd
}

func newVisitsShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				v, ok := s.handlers.Visit(args[0])
				if !ok {
					return fmt.Errorf("visit %s not found", args[0])
				}
				if g.isJSON() {
					return printJSON(cmd.OutOrStdout(), v)
				}
				printVisit(cmd.OutOrStdout(), s.records.Snapshot(), v)
				return nil
			})
		},
	}
}

// visitFlags binds the editable visit fields to flags.
type visitFlags struct {
	draft records.VisitDraft
	ai    bool
}

func (vf *visitFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&vf.draft.HospitalID, "hospital", "", "hospital ID")
	fs.StringVar(&vf.draft.VisitDate, "date", "", "visit date (YYYY-MM-DD)")
	fs.StringVar(&vf.draft.PatientName, "patient", "", "patient name")
	fs.StringVar(&vf.draft.PhoneNumber, "phone", "", "patient phone number")
	fs.StringVar(&vf.draft.Disease, "disease", "", "diagnosis")
	fs.StringVar(&vf.draft.Findings, "findings", "", "clinical findings")
	fs.StringVar(&vf.draft.NextVisitDate, "next", "", "next visit date (YYYY-MM-DD)")
	fs.StringVar(&vf.draft.Comments, "comments", "", "doctor's comments")
	fs.BoolVar(&vf.ai, "ai", false, "append AI-suggested comments from the diagnosis and findings")
}

// overlay copies the flags that were set on the command line onto base.
func (vf *visitFlags) overlay(fs *pflag.FlagSet, base records.VisitDraft) records.VisitDraft {
	fields := map[string]*string{
		"hospital": &base.HospitalID,
		"date":     &base.VisitDate,
		"patient":  &base.PatientName,
		"phone":    &base.PhoneNumber,
		"disease":  &base.Disease,
		"findings": &base.Findings,
		"next":     &base.NextVisitDate,
		"comments": &base.Comments,
	}
	src := map[string]string{
		"hospital": vf.draft.HospitalID,
		"date":     vf.draft.VisitDate,
		"patient":  vf.draft.PatientName,
		"phone":    vf.draft.PhoneNumber,
		"disease":  vf.draft.Disease,
		"findings": vf.draft.Findings,
		"next":     vf.draft.NextVisitDate,
		"comments": vf.draft.Comments,
	}
	for name, dst := range fields {
		if fs.Changed(name) {
			*dst = src[name]
		}
	}
	return base
}

// withSuggestion appends an AI suggestion to the draft's comments. Without a
// configured client the draft is returned unchanged with a notice.
func withSuggestion(cmd *cobra.Command, s *session, d records.VisitDraft) records.VisitDraft {
	if s.insight == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "AI insights are not configured; run 'medtrack setup' to add a Gemini API key.")
		return d
	}
	text := s.insight.Suggest(cmd.Context(), d.Disease, d.Findings)
	if isPlaceholder(text) {
		fmt.Fprintln(cmd.ErrOrStderr(), text)
		return d
	}
	d.Comments = insight.AppendSuggestion(d.Comments, text)
	return d
}

func isPlaceholder(text string) bool {
	switch text {
	case insight.MsgOffline, insight.MsgIncomplete, insight.MsgError, insight.MsgEmpty:
		return true
	}
	return false
}

func newVisitsAddCmd(g *globals) *cobra.Command {
	var vf visitFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				d := vf.draft
				noteKnownPatient(cmd, s, d)
				if vf.ai {
					d = withSuggestion(cmd, s, d)
				}
				v, err := s.handlers.SaveVisit(d, "")
				if err != nil {
					return err
				}
				return reportVisit(cmd, g, "Recorded", v)
			})
		},
	}
	vf.register(cmd.Flags())
	for _, name := range []string{"hospital", "date", "patient", "phone"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newVisitsEditCmd(g *globals) *cobra.Command {
	var vf visitFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing visit",
		Long:  "Change fields of an existing visit. Only the flags given are changed; the visit keeps its position in the list.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				existing, ok := s.handlers.Visit(args[0])
				if !ok {
					return fmt.Errorf("visit %s not found", args[0])
				}
				d := vf.overlay(cmd.Flags(), records.DraftFromVisit(existing))
				if vf.ai {
					d = withSuggestion(cmd, s, d)
				}
				v, err := s.handlers.SaveVisit(d, existing.ID)
				if err != nil {
					return err
				}
				return reportVisit(cmd, g, "Updated", v)
			})
		},
	}
	vf.register(cmd.Flags())
	return cmd
}

func newVisitsDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				if !s.handlers.DeleteVisit(args[0]) {
					fmt.Fprintf(cmd.OutOrStdout(), "No visit with ID %s, nothing deleted.\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted visit %s\n", args[0])
				return nil
			})
		},
	}
}

// noteKnownPatient tells the user when the phone number already belongs to a
// patient recorded under another name.
func noteKnownPatient(cmd *cobra.Command, s *session, d records.VisitDraft) {
	p, ok := model.PatientByPhone(s.records.Snapshot().Visits, d.PhoneNumber)
	if !ok || strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(d.PatientName)) {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Note: phone %s is on record for %s; visits with the same phone count as one patient.\n",
		p.Phone, p.Name)
}

func newVisitsPatientsCmd(g *globals) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List patients known from earlier visits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				visits := model.VisitQuery{Hospital: model.AllHospitals(), Search: search}.Apply(s.records.Snapshot())
				patients := model.KnownPatients(visits)
				if g.isJSON() {
					return printJSON(cmd.OutOrStdout(), patients)
				}
				return printPatientTable(cmd.OutOrStdout(), patients)
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match patient name (case-insensitive) or phone number")
	return cmd
}

func reportVisit(cmd *cobra.Command, g *globals, verb string, v model.PatientVisit) error {
	if g.isJSON() {
		return printJSON(cmd.OutOrStdout(), v)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s visit %s for %s on %s\n", verb, v.ID, v.PatientName, v.VisitDate)
	return nil
}
