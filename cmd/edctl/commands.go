package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/service/admission"
	"github.com/jwalitptl/ed-intake/internal/service/views"
)

var errNotSignedIn = stderrors.New("not signed in, run edctl login")

func newLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()

			if password == "" {
				password = os.Getenv("ED_PASSWORD")
			}
			if password == "" {
				p, err := prompt(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}

			profile, err := a.auth.Login(ctx, email, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed in as %s (%s)\n", profile.Email, roleLabel(profile.Role))

			if profile.Role == model.RolePhysician {
				adm, ok, err := a.dispatcher.RecoverSession(ctx)
				if err != nil {
					a.logger.Error(err, "could not check for an unfinished encounter")
				} else if ok {
					fmt.Fprintln(out, "Unfinished encounter resumed:")
					printAdmission(out, adm)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "operator email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default: $ED_PASSWORD or prompt)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.session.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator, queue size and current encounter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			profile := a.session.Profile()

			var (
				queue   []model.Admission
				current *model.Admission
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				queue, err = a.views.Queue(gctx)
				return err
			})
			if profile.Role == model.RolePhysician {
				g.Go(func() error {
					adm, ok, err := a.dispatcher.RecoverSession(gctx)
					if ok {
						current = adm
					}
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printProfile(out, profile, a.session.Claims().ExpiresAt)
			fmt.Fprintf(out, "Waiting:   %d\n", len(queue))
			if current != nil {
				fmt.Fprintf(out, "Attending: %s (%s)\n", current.PatientName(), current.ID)
			}
			return nil
		},
	}
}

func newPatientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Patient registry",
	}

	lookup := &cobra.Command{
		Use:   "lookup CUIL",
		Short: "Look up a patient by identity code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			p, found, err := a.resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "No patient registered with CUIL %s\n", strings.TrimSpace(args[0]))
				return nil
			}
			printPatient(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var (
		req    model.PageRequest
		filter string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered patients one page at a time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			page, err := a.views.Patients(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if filter != "" {
				f := views.FilterPatients(page.Content, filter)
				fmt.Fprintln(out, f.Label())
				page.Content = f.Items
			}
			printPatients(out, page)
			return nil
		},
	}
	list.Flags().IntVar(&req.Page, "page", 0, "page number, starting at 0")
	list.Flags().IntVar(&req.Size, "size", 10, "page size")
	list.Flags().StringVar(&req.SortBy, "sort", "apellido", "sort column: apellido, nombre, cuil or email")
	list.Flags().StringVar(&req.Direction, "dir", "asc", "sort direction: asc or desc")
	list.Flags().StringVar(&filter, "filter", "", "filter the loaded page by text")

	cmd.AddCommand(lookup, list)
	return cmd
}

func newProvidersCommand() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List insurance providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			providers, err := a.catalog.Search(cmd.Context(), search)
			if err != nil {
				return err
			}
			printProviders(cmd.OutOrStdout(), providers)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only providers whose name contains this text")
	return cmd
}

type admitFlags struct {
	code      string
	details   admission.PatientDetails
	insurance admission.InsuranceInput
	complaint string
	priority  string
	temp      float64
	systolic  float64
	diastolic float64
	heartRate float64
	respRate  float64
}

func newAdmitCommand() *cobra.Command {
	var f admitFlags

	cmd := &cobra.Command{
		Use:   "admit",
		Short: "Admit a patient to the emergency department",
		Long: `Admit a patient. An existing patient's details cannot be changed here:
only triage and vitals are recorded. For a new patient, name and address
are required and insurance is optional.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}

			w := a.workflow()
			mode, err := w.Resolve(ctx, f.code)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CUIL %s: %s\n", w.Code(), mode)

			if mode == admission.ModeOpen {
				if err := w.SetPatientDetails(f.details); err != nil {
					return err
				}
				if err := w.SetInsurance(f.insurance); err != nil {
					return err
				}
			} else if cmd.Flags().Changed("nombre") || cmd.Flags().Changed("apellido") ||
				cmd.Flags().Changed("obra-social") || cmd.Flags().Changed("calle") {
				fmt.Fprintln(out, "Registered patient: demographic flags are ignored")
			}

			priority, ok := model.ParsePriority(f.priority)
			if !ok {
				priority = model.TriagePriority(f.priority)
			}
			triage := admission.TriageInput{
				Complaint: f.complaint,
				Priority:  priority,
				Vitals: admission.VitalsInput{
					Temperature:     optional(cmd, "temperatura", f.temp),
					Systolic:        optional(cmd, "sistolica", f.systolic),
					Diastolic:       optional(cmd, "diastolica", f.diastolic),
					HeartRate:       optional(cmd, "frecuencia-cardiaca", f.heartRate),
					RespiratoryRate: optional(cmd, "frecuencia-respiratoria", f.respRate),
				},
			}
			if err := w.SetTriage(triage); err != nil {
				return err
			}

			adm, err := w.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Admission registered:")
			printAdmission(out, adm)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.code, "cuil", "", "patient identity code")
	fl.StringVar(&f.details.GivenName, "nombre", "", "given name (new patients)")
	fl.StringVar(&f.details.FamilyName, "apellido", "", "family name (new patients)")
	fl.StringVar(&f.details.Email, "email", "", "email (new patients)")
	fl.StringVar(&f.details.Street, "calle", "", "street (new patients)")
	fl.IntVar(&f.details.Number, "numero", 0, "street number (new patients)")
	fl.StringVar(&f.details.Locality, "localidad", "", "locality (new patients)")
	fl.StringVar(&f.insurance.Provider, "obra-social", "", "insurance provider name (new patients)")
	fl.StringVar(&f.insurance.MemberNumber, "afiliado", "", "insurance member number (new patients)")
	fl.StringVar(&f.complaint, "descripcion", "", "presenting complaint")
	fl.StringVar(&f.priority, "nivel", "", "triage level: CRITICA, EMERGENCIA, URGENCIA, URGENCIA_MENOR or SIN_URGENCIA")
	fl.Float64Var(&f.temp, "temperatura", 0, "temperature in °C")
	fl.Float64Var(&f.systolic, "sistolica", 0, "systolic blood pressure")
	fl.Float64Var(&f.diastolic, "diastolica", 0, "diastolic blood pressure")
	fl.Float64Var(&f.heartRate, "frecuencia-cardiaca", 0, "heart rate")
	fl.Float64Var(&f.respRate, "frecuencia-respiratoria", 0, "respiratory rate")
	_ = cmd.MarkFlagRequired("cuil")
	return cmd
}

// optional returns nil for a flag the operator never set, so missing vitals
// are reported instead of being sent as zero.
func optional(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return admission.Float(v)
}

func newQueueCommand() *cobra.Command {
	var (
		watch  time.Duration
		filter string
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show patients waiting, in attention order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			show := func(ctx context.Context) error {
				queue, err := a.views.Queue(ctx)
				if err != nil {
					return err
				}
				if filter != "" {
					f := views.FilterAdmissions(queue, filter)
					fmt.Fprintln(out, f.Label())
					queue = f.Items
				}
				printQueue(out, queue)
				return nil
			}
			if watch <= 0 {
				return show(cmd.Context())
			}

			return a.run(cmd.Context(), func(ctx context.Context) error {
				events, err := a.queueEvents(ctx)
				if err != nil {
					return err
				}
				ticker := time.NewTicker(watch)
				defer ticker.Stop()
				for {
					if err := show(ctx); err != nil {
						return err
					}
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						fmt.Fprintln(out)
					case data, ok := <-events:
						if !ok {
							events = nil
						}
						fmt.Fprintln(out)
						if line := describeEvent(data); line != "" {
							fmt.Fprintln(out, line)
						}
					}
				}
			})
		},
	}
	cmd.Flags().DurationVarP(&watch, "watch", "w", 0, "refresh at this interval, and on queue events when configured, until interrupted")
	cmd.Flags().StringVar(&filter, "filter", "", "filter the loaded queue by text")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every admission, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			list, err := a.views.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if filter != "" {
				f := views.FilterAdmissions(list, filter)
				fmt.Fprintln(out, f.Label())
				list = f.Items
			}
			printHistory(out, list)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter the loaded admissions by text")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one admission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			adm, err := a.views.Admission(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAdmission(cmd.OutOrStdout(), adm)
			return nil
		},
	}
}

func newNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Take the next patient from the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if _, _, err := a.dispatcher.RecoverSession(ctx); err != nil {
				return err
			}

			adm, ok, err := a.dispatcher.DispatchNext(ctx)
			out := cmd.OutOrStdout()
			if !ok {
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "No patients waiting")
				return nil
			}
			fmt.Fprintln(out, "Now attending:")
			printAdmission(out, adm)
			return err
		},
	}
}

func newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Show the encounter left unfinished by an earlier session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			adm, ok, err := a.dispatcher.RecoverSession(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "No unfinished encounter")
				return nil
			}
			printAdmission(out, adm)
			return nil
		},
	}
}

func newFinalizeCommand() *cobra.Command {
	var report string

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "File the clinical report and close the current encounter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if _, ok, err := a.dispatcher.RecoverSession(ctx); err != nil {
				return err
			} else if !ok {
				return stderrors.New("no patient is currently being attended, run edctl next")
			}

			if report == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				report = string(data)
			}

			rec, err := a.dispatcher.Finalize(ctx, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attention %s filed for admission %s at %s\n",
				rec.ID, rec.AdmissionID, formatTime(rec.CompletedAt))
			return nil
		},
	}
	cmd.Flags().StringVarP(&report, "informe", "r", "", `clinical report, or "-" to read it from stdin`)
	return cmd
}

func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !stderrors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
