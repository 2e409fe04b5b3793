package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trakka/internal/app"
	"trakka/internal/apperr"
	"trakka/internal/config"
	"trakka/internal/db"
	"trakka/internal/domain"
	"trakka/internal/engine"
	"trakka/internal/engine/auth"
	"trakka/internal/repo"
	"trakka/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "trakka",
	Short: "Trakka time tracking CLI",
	Long: `Trakka records time against projects and runs it through a two-step review.
- Entries: minutes logged on a date, by hand or from a timer. Each one lands in the
  owner's timesheet for that Monday-to-Sunday week.
- Timesheets: one per person per week. DRAFT until submitted after the week ends,
  then APPROVED or REJECTED by a manager; the decision applies to every entry in it.
- Reviewers may also decide single entries while the week is still open.
- Event log: every change is recorded, view with 'trakka log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if details := errorDetails(err); details != "" {
			fmt.Fprintln(os.Stderr, details)
		}
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRAKKA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "actor identifier")
	rootCmd.PersistentFlags().Bool("override", false, "admin override for closed weeks and decided entries")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("override", rootCmd.PersistentFlags().Lookup("override"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(entryCmd())
	rootCmd.AddCommand(timerCmd())
	rootCmd.AddCommand(weekCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var opts app.InitOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create trakka.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.Init(cmd.Context(), viper.GetString("workspace"), opts)
			if err != nil {
				return err
			}
			defer ws.Close()
			if viper.GetBool("json") {
				return printJSON(ws.Config)
			}
			fmt.Printf("Initialized %s for %s (%s)\n", config.Path(ws.Dir), ws.Config.Organization.Name, ws.Config.Organization.Timezone)
			for _, id := range ws.Config.Bootstrap.Admins {
				fmt.Printf("  admin: %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.OrgName, "org", "", "organization name")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone weeks are computed in")
	cmd.Flags().StringSliceVar(&opts.Admins, "admin", nil, "bootstrap admin actor id (repeatable)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing trakka.yml")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectMemberCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListProjects(ctx, actor, all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Active", "Budget (h)", "Members"})
				for _, p := range items {
					budget := ""
					if p.BudgetHours != nil {
						budget = fmt.Sprintf("%.2f", *p.BudgetHours)
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.Active, budget, strings.Join(p.Members, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive projects")
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var in engine.ProjectInput
	var budget float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget") {
				in.BudgetHours = &budget
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				p, err := e.CreateProject(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrLine(p, fmt.Sprintf("Created project %s (%s)", p.ID, p.Name))
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&in.Name, "name", "", "project name")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().Float64Var(&budget, "budget", 0, "budget in hours")
	cmd.Flags().BoolVar(&in.Inactive, "inactive", false, "create as inactive")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show project hours against budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				rep, err := e.ProjectSummary(ctx, actor, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("Project: %s (%s)\n", rep.Project.Name, rep.Project.ID)
				fmt.Printf("Logged:  %.2fh in %d entries\n", rep.TotalHours, rep.EntryCount)
				if rep.Project.BudgetHours != nil && rep.BudgetUsedPercent != nil {
					fmt.Printf("Budget:  %.2fh (%.0f%% used)\n", *rep.Project.BudgetHours, *rep.BudgetUsedPercent)
				}
				return nil
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var name, description string
	var budget float64
	var active, clearBudget bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd engine.ProjectUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("description") {
				upd.Description = &description
			}
			if cmd.Flags().Changed("budget") {
				upd.BudgetHours = &budget
			}
			if cmd.Flags().Changed("active") {
				upd.Active = &active
			}
			upd.ClearBudget = clearBudget
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				p, err := e.UpdateProject(ctx, actor, args[0], upd)
				if err != nil {
					return err
				}
				return printJSONOrLine(p, fmt.Sprintf("Updated project %s", p.ID))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Float64Var(&budget, "budget", 0, "budget in hours")
	cmd.Flags().BoolVar(&clearBudget, "clear-budget", false, "remove the budget")
	cmd.Flags().BoolVar(&active, "active", true, "whether new time may be booked")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete project and all of its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				if err := e.DeleteProject(ctx, actor, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted project %s\n", args[0])
				return nil
			})
		},
	}
}

func projectMemberCmd() *cobra.Command {
	member := &cobra.Command{Use: "member", Short: "Manage project members"}
	for _, add := range []bool{true, false} {
		add := add
		use, short := "add <project> <actor>", "Add member"
		if !add {
			use, short = "remove <project> <actor>", "Remove member"
		}
		member.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
					var (
						p   domain.Project
						err error
					)
					if add {
						p, err = e.AddProjectMember(ctx, actor, args[0], args[1])
					} else {
						p, err = e.RemoveProjectMember(ctx, actor, args[0], args[1])
					}
					if err != nil {
						return err
					}
					return printJSONOrLine(p, fmt.Sprintf("Members of %s: %s", p.ID, strings.Join(p.Members, ", ")))
				})
			},
		})
	}
	return member
}

func entryCmd() *cobra.Command {
	ent := &cobra.Command{Use: "entry", Short: "Log and review time entries"}
	ent.AddCommand(entryAddCmd())
	ent.AddCommand(entryListCmd())
	ent.AddCommand(entryShowCmd())
	ent.AddCommand(entryEditCmd())
	ent.AddCommand(entryDeleteCmd())
	ent.AddCommand(entryApproveCmd())
	ent.AddCommand(entryRejectCmd())
	ent.AddCommand(entryPendingCmd())
	return ent
}

func entryAddCmd() *cobra.Command {
	var projectID, date, start, end, description string
	var minutes int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log time by minutes or by --start/--end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				if date == "" {
					date = time.Now().In(e.Config.Location()).Format(domain.DateLayout)
				}
				var (
					entry domain.TimeEntry
					err   error
				)
				if start != "" || end != "" {
					entry, err = e.CreateEntryFromInterval(ctx, actor, engine.IntervalEntryInput{
						ProjectID: projectID, Date: date, StartTime: start, EndTime: end, Description: description,
					})
				} else {
					entry, err = e.CreateEntry(ctx, actor, engine.EntryInput{
						ProjectID: projectID, Date: date, Minutes: minutes, Description: description,
					})
				}
				if err != nil {
					return err
				}
				return printJSONOrLine(entry, fmt.Sprintf("Logged %s on %s (%s)", domain.FormatMinutes(entry.DurationMinutes), entry.Date, entry.ID))
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "duration in minutes")
	cmd.Flags().StringVar(&start, "start", "", "start time (HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "end time (HH:MM)")
	cmd.Flags().StringVarP(&description, "description", "m", "", "what was done")
	return cmd
}

func entryListCmd() *cobra.Command {
	var f repo.EntryFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.EntryStatus(strings.ToUpper(status))
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListEntries(ctx, actor, f)
				if err != nil {
					return err
				}
				return printEntries(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter (reviewers only)")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.TimesheetID, "timesheet", "", "timesheet filter")
	cmd.Flags().StringVar(&status, "status", "", "PENDING, APPROVED or REJECTED")
	cmd.Flags().StringVar(&f.From, "from", "", "first date")
	cmd.Flags().StringVar(&f.To, "to", "", "last date")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func entryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				entry, err := e.GetEntry(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSON(entry)
			})
		},
	}
}

func entryEditCmd() *cobra.Command {
	var projectID, date, description string
	var minutes int
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := engine.EntryUpdate{Override: viper.GetBool("override")}
			if cmd.Flags().Changed("project") {
				upd.ProjectID = &projectID
			}
			if cmd.Flags().Changed("date") {
				upd.Date = &date
			}
			if cmd.Flags().Changed("minutes") {
				upd.Minutes = &minutes
			}
			if cmd.Flags().Changed("description") {
				upd.Description = &description
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				entry, err := e.UpdateEntry(ctx, actor, args[0], upd)
				if err != nil {
					return err
				}
				return printJSONOrLine(entry, fmt.Sprintf("Updated %s: %s on %s", entry.ID, domain.FormatMinutes(entry.DurationMinutes), entry.Date))
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "duration in minutes")
	cmd.Flags().StringVarP(&description, "description", "m", "", "description")
	return cmd
}

func entryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				if err := e.DeleteEntry(ctx, actor, args[0], viper.GetBool("override")); err != nil {
					return err
				}
				fmt.Printf("Deleted entry %s\n", args[0])
				return nil
			})
		},
	}
}

func entryApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				entry, err := e.ApproveEntry(ctx, actor, args[0])
				return reportDecision(entry, entry.ID, string(entry.Status), err)
			})
		},
	}
}

func entryRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				entry, err := e.RejectEntry(ctx, actor, args[0], reason)
				return reportDecision(entry, entry.ID, string(entry.Status), err)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func entryPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Entries awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.PendingEntries(ctx, actor, limit)
				if err != nil {
					return err
				}
				return printEntries(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func timerCmd() *cobra.Command {
	tmr := &cobra.Command{Use: "timer", Short: "Track time with a running timer"}
	tmr.AddCommand(timerStartCmd())
	tmr.AddCommand(timerStopCmd())
	tmr.AddCommand(timerStatusCmd())
	tmr.AddCommand(timerHistoryCmd())
	return tmr
}

func timerStartCmd() *cobra.Command {
	var in engine.TimerStartInput
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				session, err := e.StartTimer(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrLine(session, fmt.Sprintf("Timer %s started on %s at %s", session.ID, session.ProjectID, session.StartedAt))
			})
		},
	}
	cmd.Flags().StringVar(&in.ProjectID, "project", "", "project id")
	cmd.Flags().StringVarP(&in.Description, "description", "m", "", "description for the booked entry")
	return cmd
}

func timerStopCmd() *cobra.Command {
	var timerID string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop timer and book the elapsed time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				res, err := e.StopTimer(ctx, actor, timerID)
				if errors.Is(err, apperr.ErrTimesheetNotMutable) && res.Session.ID != "" {
					fmt.Fprintf(os.Stderr, "timer %s stopped after %s but its week is closed; no entry was booked\n",
						res.Session.ID, domain.FormatMinutes(res.Minutes))
				}
				if err != nil {
					return err
				}
				return printJSONOrLine(res, fmt.Sprintf("Booked %s as entry %s", domain.FormatMinutes(res.Minutes), res.Entry.ID))
			})
		},
	}
	cmd.Flags().StringVar(&timerID, "id", "", "timer id (default: the running one)")
	return cmd
}

func timerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show running timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				status, err := e.TimerStatus(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(status)
				}
				if !status.Running {
					fmt.Println("No timer running")
					return nil
				}
				fmt.Printf("%s on %s (started %s)\n", status.Elapsed, status.Session.ProjectID, status.Session.StartedAt)
				return nil
			})
		},
	}
}

func timerHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Past timer sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.TimerHistory(ctx, actor, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Project", "Started", "Stopped", "Entry"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.ProjectID, s.StartedAt, deref(s.StoppedAt), deref(s.EntryID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func weekCmd() *cobra.Command {
	wk := &cobra.Command{Use: "week", Short: "Weekly timesheets"}
	wk.AddCommand(weekShowCmd())
	wk.AddCommand(weekListCmd())
	wk.AddCommand(weekSubmitCmd())
	wk.AddCommand(weekApproveCmd())
	wk.AddCommand(weekRejectCmd())
	wk.AddCommand(weekPendingCmd())
	return wk
}

func weekShowCmd() *cobra.Command {
	var date, id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a week's timesheet (default: this week)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				var (
					view engine.TimesheetView
					err  error
				)
				switch {
				case id != "":
					view, err = e.GetTimesheet(ctx, actor, id)
				case date != "":
					view, err = e.WeekTimesheet(ctx, actor, date)
				default:
					view, err = e.CurrentTimesheet(ctx, actor)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				ts := view.Timesheet
				fmt.Printf("Week %s .. %s  %s  %s\n", ts.WeekStart, ts.WeekEnd, ts.Status, domain.FormatMinutes(view.TotalMinutes))
				if ts.RejectionReason != nil {
					fmt.Printf("Rejected: %s\n", *ts.RejectionReason)
				}
				return printEntries(view.Entries)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "any date in the week")
	cmd.Flags().StringVar(&id, "id", "", "timesheet id")
	return cmd
}

func weekListCmd() *cobra.Command {
	var f repo.TimesheetFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List timesheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.TimesheetStatus(strings.ToUpper(status))
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListTimesheets(ctx, actor, f)
				if err != nil {
					return err
				}
				return printTimesheets(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter (reviewers only)")
	cmd.Flags().StringVar(&status, "status", "", "DRAFT, SUBMITTED, APPROVED or REJECTED")
	cmd.Flags().StringVar(&f.From, "from", "", "earliest week start")
	cmd.Flags().StringVar(&f.To, "to", "", "latest week start")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func weekSubmitCmd() *cobra.Command {
	var date, id, notes string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a finished week for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				var (
					ts  domain.Timesheet
					err error
				)
				if id != "" {
					ts, err = e.SubmitTimesheet(ctx, actor, id, notes)
				} else {
					if date == "" {
						date = time.Now().In(e.Config.Location()).AddDate(0, 0, -7).Format(domain.DateLayout)
					}
					ts, err = e.SubmitWeek(ctx, actor, date, notes)
				}
				return reportDecision(ts, ts.ID, string(ts.Status), err)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "any date in the week (default: last week)")
	cmd.Flags().StringVar(&id, "id", "", "timesheet id")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the reviewer")
	return cmd
}

func weekApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <timesheet-id>",
		Short: "Approve timesheet and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				ts, err := e.ApproveTimesheet(ctx, actor, args[0])
				return reportDecision(ts, ts.ID, string(ts.Status), err)
			})
		},
	}
}

func weekRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <timesheet-id>",
		Short: "Reject timesheet and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				ts, err := e.RejectTimesheet(ctx, actor, args[0], reason)
				return reportDecision(ts, ts.ID, string(ts.Status), err)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason (required)")
	return cmd
}

func weekPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Timesheets awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.PendingTimesheets(ctx, actor, limit)
				if err != nil {
					return err
				}
				return printTimesheets(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Totals and exports"}
	rep.AddCommand(reportSummaryCmd())
	rep.AddCommand(reportExportCmd())
	return rep
}

func reportFlags(cmd *cobra.Command, f *engine.ReportFilter, status *string) {
	cmd.Flags().StringVar(&f.From, "from", "", "first date")
	cmd.Flags().StringVar(&f.To, "to", "", "last date")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter (reviewers only)")
	cmd.Flags().StringVar(status, "status", "", "entry status filter")
}

func reportSummaryCmd() *cobra.Command {
	var f engine.ReportFilter
	var status string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Hours by project, owner and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.EntryStatus(strings.ToUpper(status))
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				sum, err := e.Summary(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("Total: %.2fh in %d entries\n", sum.TotalHours, sum.EntryCount)
				for _, group := range []struct {
					title string
					lines []engine.TotalLine
				}{{"Project", sum.ByProject}, {"Owner", sum.ByOwner}, {"Status", sum.ByStatus}} {
					if len(group.lines) == 0 {
						continue
					}
					tw := newTable()
					tw.AppendHeader(table.Row{group.title, "Hours", "Entries"})
					for _, l := range group.lines {
						tw.AppendRow(table.Row{l.Label, fmt.Sprintf("%.2f", l.Hours), l.Entries})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	reportFlags(cmd, &f, &status)
	return cmd
}

func reportExportCmd() *cobra.Command {
	var f engine.ReportFilter
	var status, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.EntryStatus(strings.ToUpper(status))
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				var w io.Writer = os.Stdout
				if out != "" && out != "-" {
					file, err := os.Create(out)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				return e.ExportCSV(ctx, actor, f, w)
			})
		},
	}
	reportFlags(cmd, &f, &status)
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "This week at a glance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				d, err := e.Dashboard(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("%s (%s), %s\n", d.ActorID, d.Role, d.Today)
				fmt.Printf("This week: %.2fh", d.WeekHours)
				if d.Week.Timesheet.ID != "" {
					fmt.Printf(", timesheet %s", d.Week.Timesheet.Status)
				}
				fmt.Println()
				if d.Timer.Running {
					fmt.Printf("Timer: %s on %s\n", d.Timer.Elapsed, d.Timer.Session.ProjectID)
				}
				if d.Role.Reviewer() {
					fmt.Printf("Awaiting review: %d entries, %d timesheets\n", d.PendingEntries, d.SubmittedTimesheets)
				}
				fmt.Printf("Active projects: %d\n", d.ActiveProjects)
				if len(d.Recent) > 0 {
					fmt.Println("Recent:")
					return printEntries(d.Recent)
				}
				return nil
			})
		},
	}
}

func actorCmd() *cobra.Command {
	act := &cobra.Command{Use: "actor", Short: "Manage people and credentials"}
	act.AddCommand(actorAddCmd())
	act.AddCommand(actorRoleCmd())
	act.AddCommand(actorListCmd())
	act.AddCommand(actorWhoamiCmd())
	act.AddCommand(actorKeyCmd())
	act.AddCommand(actorTokenCmd())
	return act
}

func actorAddCmd() *cobra.Command {
	var in engine.ActorInput
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ID = args[0]
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				a, err := e.RegisterActor(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrLine(a, fmt.Sprintf("Registered %s as %s", a.ID, a.Role))
			})
		},
	}
	cmd.Flags().StringVar(&in.Role, "role", string(domain.RoleWorker), "WORKER, MANAGER or ADMIN")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&in.Department, "department", "", "department")
	return cmd
}

func actorRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <id> <role>",
		Short: "Change actor role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				a, err := e.SetActorRole(ctx, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrLine(a, fmt.Sprintf("%s is now %s", a.ID, a.Role))
			})
		},
	}
}

func actorListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				items, err := e.ListActors(ctx, actor, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Role", "Name", "Department"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Role, a.DisplayName, a.Department})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func actorWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting identity and its permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				out := map[string]any{
					"actor_id":    actor.ID,
					"role":        actor.Role,
					"permissions": auth.Permissions(actor.Role),
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("%s (%s): %s\n", actor.ID, actor.Role, strings.Join(auth.Permissions(actor.Role), ", "))
				return nil
			})
		},
	}
}

func actorKeyCmd() *cobra.Command {
	var name, target string
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Issue an API key (shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				plain, key, err := e.IssueAPIKey(ctx, actor, target, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": plain, "details": key})
				}
				fmt.Printf("API key for %s (%s):\n%s\n", key.ActorID, key.ID, plain)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&target, "for", "", "actor id (default: yourself)")
	return cmd
}

func actorTokenCmd() *cobra.Command {
	var target string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with TRAKKA_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("TRAKKA_JWT_SECRET is required to sign tokens")
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				if target == "" {
					target = actor.ID
				}
				if target != actor.ID {
					if err := auth.Require(actor, auth.PermActorManage); err != nil {
						return err
					}
				}
				if _, err := e.Repo.GetActor(ctx, nil, target); err != nil {
					return err
				}
				token, err := server.SignToken(secret, target, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "for", "", "actor id (default: yourself)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor auth.Actor) error {
				events, err := e.AuditLog(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Time", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&f.ActorID, "actor", "", "acting actor filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Serves the API configured by TRAKKA_* environment variables (TRAKKA_JWT_SECRET, TRAKKA_ADDR, TRAKKA_BASE_PATH, TRAKKA_RATE_LIMIT, ...).",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.LoadRuntime()
			if err != nil {
				return err
			}
			if addr != "" {
				rt.Addr = addr
			}
			logger := config.NewLogger(rt.LogFormat)
			ws, err := app.Open(cmd.Context(), viper.GetString("workspace"), logger)
			if err != nil {
				return err
			}
			defer ws.Close()
			handler, err := server.New(server.Config{
				Engine:   ws.Engine,
				BasePath: rt.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:        rt.JWTSecret,
					AllowActorHeader: rt.ActorHeader,
					DevLogin:         rt.DevLogin,
				},
				Logger:     logger,
				RateLimit:  rt.RateLimit,
				Production: rt.IsProduction(),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:         rt.Addr,
				Handler:      handler,
				ReadTimeout:  rt.ReadTimeout,
				WriteTimeout: rt.WriteTimeout,
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving trakka API",
				"addr", rt.Addr,
				"base_path", rt.BasePath,
				"org", ws.Config.Organization.Name,
				"env", rt.Env,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides TRAKKA_ADDR)")
	return cmd
}

// --- helpers ---

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(ctx, viper.GetString("workspace"), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// withActor resolves --actor-id against the stored roles before running fn.
func withActor(ctx context.Context, fn func(context.Context, engine.Engine, auth.Actor) error) error {
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		actor, err := ws.ResolveActor(ctx, viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		return fn(ctx, ws.Engine, actor)
	})
}

// reportDecision prints the result of a state change. A repeated decision is
// reported, not treated as a failure.
func reportDecision(v any, id, status string, err error) error {
	if apperr.IsNoop(err) {
		if viper.GetBool("json") {
			return printJSON(map[string]any{"outcome": "already_processed", "result": v})
		}
		fmt.Printf("%s already %s; nothing changed\n", id, status)
		return nil
	}
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(map[string]any{"outcome": "applied", "result": v})
	}
	fmt.Printf("%s is now %s\n", id, status)
	return nil
}

func errorDetails(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) || len(ae.Details) == 0 {
		return ""
	}
	b, _ := json.Marshal(map[string]any{"code": ae.Kind, "details": ae.Details})
	return string(b)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printEntries(items []domain.TimeEntry) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Date", "Owner", "Project", "Time", "Status", "Kind", "Description"})
	total := 0
	for _, e := range items {
		total += e.DurationMinutes
		tw.AppendRow(table.Row{e.ID, e.Date, e.OwnerID, e.ProjectID, domain.FormatMinutes(e.DurationMinutes), e.Status, e.Kind, e.Description})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", domain.FormatMinutes(total)})
	tw.Render()
	return nil
}

func printTimesheets(items []domain.Timesheet) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Owner", "Week", "Status", "Submitted", "Approver"})
	for _, ts := range items {
		tw.AppendRow(table.Row{ts.ID, ts.OwnerID, ts.WeekStart, ts.Status, deref(ts.SubmittedAt), deref(ts.ApproverID)})
	}
	tw.Render()
	return nil
}

func printJSONOrLine(v any, line string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(line)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
