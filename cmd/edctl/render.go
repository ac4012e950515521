package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/service/admission"
	"github.com/jwalitptl/ed-intake/internal/service/attention"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t model.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func roleLabel(r model.Role) string {
	switch r {
	case model.RoleNurse:
		return "nurse"
	case model.RolePhysician:
		return "physician"
	}
	return string(r)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printProfile(w io.Writer, p *model.Profile, expires time.Time) {
	fmt.Fprintf(w, "Operator:  %s %s <%s>\n", p.GivenName, p.FamilyName, p.Email)
	fmt.Fprintf(w, "Role:      %s\n", roleLabel(p.Role))
	fmt.Fprintf(w, "CUIL:      %s\n", p.Code)
	if p.License != "" {
		fmt.Fprintf(w, "License:   %s\n", p.License)
	}
	if !expires.IsZero() {
		fmt.Fprintf(w, "Expires:   %s\n", expires.Local().Format(timeLayout))
	}
}

func printPatient(w io.Writer, p *model.Patient) {
	fmt.Fprintf(w, "CUIL:      %s\n", p.Code)
	fmt.Fprintf(w, "Name:      %s\n", p.FullName())
	if p.Email != "" {
		fmt.Fprintf(w, "Email:     %s\n", p.Email)
	}
	if a := p.Address; a != nil {
		fmt.Fprintf(w, "Address:   %s %d, %s\n", a.Street, a.Number, a.Locality)
	}
	if ins := p.Insurance; ins != nil {
		fmt.Fprintf(w, "Insurance: %s #%s\n", ins.Provider.Name, ins.MemberNumber)
	}
}

func printPatients(w io.Writer, page model.Page[model.Patient]) {
	tw := table(w)
	fmt.Fprintln(tw, "CUIL\tNAME\tEMAIL\tINSURANCE")
	for _, p := range page.Content {
		insurance := "-"
		if p.Insurance != nil {
			insurance = p.Insurance.Provider.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Code, p.FullName(), p.Email, insurance)
	}
	tw.Flush()
	fmt.Fprintf(w, "page %d of %d, %d patients\n", page.Number+1, max(page.TotalPages, 1), page.TotalElements)
}

func printProviders(w io.Writer, providers []model.InsuranceProvider) {
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, p := range providers {
		fmt.Fprintf(tw, "%d\t%s\n", p.ID, p.Name)
	}
	tw.Flush()
}

func printAdmission(w io.Writer, a *model.Admission) {
	fmt.Fprintf(w, "Admission: %s\n", a.ID)
	fmt.Fprintf(w, "Patient:   %s (%s)\n", a.PatientName(), a.PatientCode)
	fmt.Fprintf(w, "Priority:  %s\n", a.Priority.Label())
	fmt.Fprintf(w, "Status:    %s\n", a.Status)
	fmt.Fprintf(w, "Arrived:   %s\n", formatTime(a.AdmittedAt))
	fmt.Fprintf(w, "Complaint: %s\n", a.Complaint)
	fmt.Fprintf(w, "Vitals:    %.1f °C, BP %d/%d, HR %d, RR %d\n",
		a.Temperature, a.Systolic, a.Diastolic, a.HeartRate, a.RespiratoryRate)
	if a.NurseCode != "" {
		fmt.Fprintf(w, "Triage by: %s %s\n", a.NurseCode, a.NurseLicense)
	}
}

func printQueue(w io.Writer, queue []model.Admission) {
	if len(queue) == 0 {
		fmt.Fprintln(w, "No patients waiting")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "#\tPRIORITY\tPATIENT\tCUIL\tARRIVED\tCOMPLAINT")
	for i, a := range queue {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, a.Priority.Label(), a.PatientName(), a.PatientCode, formatTime(a.AdmittedAt), a.Complaint)
	}
	tw.Flush()
}

func printHistory(w io.Writer, list []model.Admission) {
	tw := table(w)
	fmt.Fprintln(tw, "ARRIVED\tSTATUS\tPRIORITY\tPATIENT\tID")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			formatTime(a.AdmittedAt), a.Status, a.Priority.Label(), a.PatientName(), a.ID)
	}
	tw.Flush()
}

// describe turns err into the line shown to the operator.
func describe(err error) string {
	appErr, ok := errors.As(err)
	if !ok {
		return "error: " + err.Error()
	}
	switch appErr.Kind {
	case errors.KindAuthExpired:
		return "session expired, run edctl login"
	case errors.KindTransport:
		return "could not reach the emergency department service: " + appErr.Message
	case errors.KindValidation:
		if len(appErr.Fields) > 1 {
			var b strings.Builder
			b.WriteString("please fix the following:")
			for _, f := range appErr.Fields {
				fmt.Fprintf(&b, "\n  %s: %s", f.Field, f.Message)
			}
			return b.String()
		}
	}
	return "error: " + appErr.Message
}

func exitCode(err error) int {
	switch {
	case stderrors.Is(err, errNotSignedIn), errors.IsAuthExpired(err):
		return 3
	case errors.IsValidation(err),
		stderrors.Is(err, admission.ErrFieldLocked),
		stderrors.Is(err, attention.ErrEncounterActive):
		return 2
	case errors.IsTransport(err):
		return 4
	}
	return 1
}
