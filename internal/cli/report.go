package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"amalnama/internal/app"
	"amalnama/internal/attendance"
)

func newReportCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print CGPA, attendance and policy reports",
	}
	cmd.AddCommand(
		newCGPAReport(opts),
		newAttendanceReport(opts),
		newViolationsReport(opts),
	)
	return cmd
}

func newCGPAReport(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cgpa <student>",
		Short: "Print a student's transcript and CGPA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				if _, err := a.Directory.Get(cmd.Context(), args[0]); err != nil {
					return err
				}
				t, err := a.Grading.Transcript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), t, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "COURSE\tNAME\tCREDITS\tTOTAL\tGRADE")
					for _, c := range t.Courses {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n", c.CourseID, c.CourseName, c.CreditHours, c.Total, c.Letter)
					}
					tw.Flush()
					fmt.Fprintf(w, "CGPA %s over %d credits\n", t.CGPA, t.Credits)
				})
			})
		},
	}
}

type attendanceLine struct {
	CourseID string           `json:"courseId"`
	Stats    attendance.Stats `json:"stats"`
}

func newAttendanceReport(opts *RootOptions) *cobra.Command {
	var course string
	cmd := &cobra.Command{
		Use:   "attendance <student>",
		Short: "Print a student's attendance per course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			student := args[0]
			return opts.withApp(func(a *app.App) error {
				if _, err := a.Directory.Get(ctx, student); err != nil {
					return err
				}
				var ids []string
				if course != "" {
					ids = []string{course}
				} else {
					courses, err := a.Directory.ByStudent(ctx, student)
					if err != nil {
						return err
					}
					for _, c := range courses {
						ids = append(ids, c.ID)
					}
				}
				lines := make([]attendanceLine, 0, len(ids))
				for _, id := range ids {
					st, err := a.Attendance.Stats(ctx, student, id)
					if err != nil {
						return err
					}
					lines = append(lines, attendanceLine{CourseID: id, Stats: st})
				}
				return opts.emit(cmd.OutOrStdout(), lines, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "COURSE\tPRESENT\tLATE\tABSENT\tTOTAL\tATTENDANCE")
					for _, l := range lines {
						fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d%%\n",
							l.CourseID, l.Stats.Present, l.Stats.Late, l.Stats.Absent, l.Stats.Total, l.Stats.Percentage)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "limit the report to one course")
	return cmd
}

func newViolationsReport(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "violations",
		Short: "List enrollments below the attendance minimum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				out, err := a.Attendance.PolicyViolations(cmd.Context())
				if err != nil {
					return err
				}
				if out == nil {
					out = []attendance.Standing{}
				}
				return opts.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
					if len(out) == 0 {
						fmt.Fprintf(w, "no enrollments below %d%%\n", attendance.MinimumRequired)
						return
					}
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "STUDENT\tNAME\tCOURSE\tATTENDANCE\tSEVERITY")
					for _, s := range out {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\n", s.StudentID, s.StudentName, s.CourseCode, s.Attendance, s.Severity)
					}
					tw.Flush()
				})
			})
		},
	}
}

