package engine

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"trakka/internal/domain"
	"trakka/internal/engine/auth"
	"trakka/internal/repo"
)

type ReportFilter struct {
	From      string             `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To        string             `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ProjectID string             `json:"project_id,omitempty"`
	OwnerID   string             `json:"owner_id,omitempty"`
	Status    domain.EntryStatus `json:"status,omitempty" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

// scoped narrows f to what actor may report on; workers only see themselves.
func (f ReportFilter) scoped(actor auth.Actor) repo.EntryFilter {
	owner := f.OwnerID
	if !actor.Can(auth.PermReportAll) {
		owner = actor.ID
	}
	return repo.EntryFilter{From: f.From, To: f.To, ProjectID: f.ProjectID, OwnerID: owner, Status: f.Status}
}

type TotalLine struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Minutes int     `json:"minutes"`
	Hours   float64 `json:"hours"`
	Entries int     `json:"entries"`
}

type Summary struct {
	Filter       ReportFilter `json:"filter"`
	TotalMinutes int          `json:"total_minutes"`
	TotalHours   float64      `json:"total_hours"`
	EntryCount   int          `json:"entry_count"`
	ByProject    []TotalLine  `json:"by_project"`
	ByOwner      []TotalLine  `json:"by_owner,omitempty"`
	ByStatus     []TotalLine  `json:"by_status"`
}

func lines(totals []repo.Total) []TotalLine {
	out := make([]TotalLine, 0, len(totals))
	for _, t := range totals {
		out = append(out, TotalLine{Key: t.Key, Label: t.Label, Minutes: t.Minutes, Hours: domain.Hours(t.Minutes), Entries: t.Entries})
	}
	return out
}

// Summary totals entries by project, owner and status. Minutes are summed in SQL
// and converted to hours once per line.
func (e Engine) Summary(ctx context.Context, actor auth.Actor, f ReportFilter) (Summary, error) {
	if err := validateInput(f); err != nil {
		return Summary{}, err
	}
	ef := f.scoped(actor)
	count, minutes, err := e.Repo.CountEntries(ctx, nil, ef)
	if err != nil {
		return Summary{}, err
	}
	byProject, err := e.Repo.TotalsByProject(ctx, ef)
	if err != nil {
		return Summary{}, err
	}
	byStatus, err := e.Repo.TotalsByStatus(ctx, ef)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		Filter:       ReportFilter{From: ef.From, To: ef.To, ProjectID: ef.ProjectID, OwnerID: ef.OwnerID, Status: ef.Status},
		TotalMinutes: minutes,
		TotalHours:   domain.Hours(minutes),
		EntryCount:   count,
		ByProject:    lines(byProject),
		ByStatus:     lines(byStatus),
	}
	if actor.Can(auth.PermReportAll) {
		byOwner, err := e.Repo.TotalsByOwner(ctx, ef)
		if err != nil {
			return Summary{}, err
		}
		out.ByOwner = lines(byOwner)
	}
	return out, nil
}

type ProjectReport struct {
	Project           domain.Project `json:"project"`
	TotalMinutes      int            `json:"total_minutes"`
	TotalHours        float64        `json:"total_hours"`
	ApprovedMinutes   int            `json:"approved_minutes"`
	ApprovedHours     float64        `json:"approved_hours"`
	EntryCount        int            `json:"entry_count"`
	BudgetUsedPercent *float64       `json:"budget_used_percent,omitempty"`
}

func (e Engine) ProjectSummary(ctx context.Context, actor auth.Actor, id string) (ProjectReport, error) {
	p, err := e.GetProject(ctx, actor, id)
	if err != nil {
		return ProjectReport{}, err
	}
	count, minutes, err := e.Repo.CountEntries(ctx, nil, repo.EntryFilter{ProjectID: id})
	if err != nil {
		return ProjectReport{}, err
	}
	_, approved, err := e.Repo.CountEntries(ctx, nil, repo.EntryFilter{ProjectID: id, Status: domain.EntryApproved})
	if err != nil {
		return ProjectReport{}, err
	}
	rep := ProjectReport{
		Project:         p,
		TotalMinutes:    minutes,
		TotalHours:      domain.Hours(minutes),
		ApprovedMinutes: approved,
		ApprovedHours:   domain.Hours(approved),
		EntryCount:      count,
	}
	if p.BudgetHours != nil && *p.BudgetHours > 0 {
		pct := math.Round(float64(minutes)/60 / *p.BudgetHours * 10000) / 100
		rep.BudgetUsedPercent = &pct
	}
	return rep, nil
}

var exportHeader = []string{"Date", "Owner", "Project", "Description", "Duration (hours)", "Minutes", "Status", "Entry Type"}

// ExportCSV streams matching entries, newest first, as CSV.
func (e Engine) ExportCSV(ctx context.Context, actor auth.Actor, f ReportFilter, w io.Writer) error {
	if err := validateInput(f); err != nil {
		return err
	}
	entries, err := e.Repo.ListEntries(ctx, nil, f.scoped(actor))
	if err != nil {
		return err
	}
	projects, err := e.Repo.ListProjects(ctx, false)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	buf := bufio.NewWriter(w)
	cw := csv.NewWriter(buf)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		project := names[entry.ProjectID]
		if project == "" {
			project = entry.ProjectID
		}
		row := []string{
			entry.Date,
			entry.OwnerID,
			project,
			entry.Description,
			strconv.FormatFloat(entry.Hours(), 'f', 2, 64),
			strconv.Itoa(entry.DurationMinutes),
			string(entry.Status),
			string(entry.Kind),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

// Dashboard is the landing summary for one actor.
type Dashboard struct {
	ActorID             string             `json:"actor_id"`
	Role                domain.Role        `json:"role"`
	Today               string             `json:"today"`
	Week                TimesheetView      `json:"week"`
	WeekMinutes         int                `json:"week_minutes"`
	WeekHours           float64            `json:"week_hours"`
	Timer               TimerStatus        `json:"timer"`
	Recent              []domain.TimeEntry `json:"recent"`
	ActiveProjects      int                `json:"active_projects"`
	PendingEntries      int                `json:"pending_entries"`
	SubmittedTimesheets int                `json:"submitted_timesheets"`
}

// Dashboard gathers the actor's week at a glance. Workers get this week's
// timesheet created on first view; reviewers also see queue sizes and week
// totals across everyone.
func (e Engine) Dashboard(ctx context.Context, actor auth.Actor) (Dashboard, error) {
	today := e.today()
	d := Dashboard{ActorID: actor.ID, Role: actor.Role, Today: today.Format(domain.DateLayout)}
	var err error
	if actor.Role.Reviewer() {
		d.Week, err = e.WeekTimesheet(ctx, actor, d.Today)
	} else {
		d.Week, err = e.CurrentTimesheet(ctx, actor)
	}
	if err != nil {
		return Dashboard{}, err
	}
	start, end := domain.WeekOf(today)
	weekFilter := repo.EntryFilter{From: start.Format(domain.DateLayout), To: end.Format(domain.DateLayout)}
	if !actor.Role.Reviewer() {
		weekFilter.OwnerID = actor.ID
	}
	if _, d.WeekMinutes, err = e.Repo.CountEntries(ctx, nil, weekFilter); err != nil {
		return Dashboard{}, err
	}
	d.WeekHours = domain.Hours(d.WeekMinutes)
	if d.Timer, err = e.TimerStatus(ctx, actor); err != nil {
		return Dashboard{}, err
	}
	if d.Recent, err = e.Repo.ListEntries(ctx, nil, repo.EntryFilter{OwnerID: actor.ID, Limit: 5}); err != nil {
		return Dashboard{}, err
	}
	projects, err := e.Repo.ListProjects(ctx, true)
	if err != nil {
		return Dashboard{}, err
	}
	d.ActiveProjects = len(projects)
	if actor.Role.Reviewer() {
		if d.PendingEntries, _, err = e.Repo.CountEntries(ctx, nil, repo.EntryFilter{Status: domain.EntryPending}); err != nil {
			return Dashboard{}, err
		}
		submitted, err := e.Repo.ListTimesheets(ctx, repo.TimesheetFilter{Status: domain.TimesheetSubmitted})
		if err != nil {
			return Dashboard{}, err
		}
		d.SubmittedTimesheets = len(submitted)
	}
	return d, nil
}

// AuditLog lists recorded events. Workers only see events they caused.
func (e Engine) AuditLog(ctx context.Context, actor auth.Actor, f repo.EventFilter) ([]domain.Event, error) {
	if !actor.Can(auth.PermReportAll) {
		f.ActorID = actor.ID
	}
	return e.Repo.LatestEvents(ctx, f)
}
