package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
	"github.com/attendly/attendly/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

// cliActor is the identity the CLI reads the audit trail as.
var cliActor = attendance.Actor{UserID: "admin-cli", Name: "admin CLI", Role: role.PlatformOwner}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}

func (cli *commandLine) addUser(nm member.NewMember) error {
	m, err := cli.memberSvc.Create(context.Background(), nm)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "created %s <%s> (%s) in %s: %s\n", m.Name, m.Email, m.Role, m.OrganizationID, m.ID)
	return nil
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	m, err := cli.memberSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return cli.memberSvc.ResetPassword(ctx, m.ID, member.ResetPassword{Password: pwd, PasswordConfirm: pwd})
}

func (cli *commandLine) setPolicy(up member.UpdatePolicy) error {
	p, err := cli.memberSvc.SetPolicy(context.Background(), up)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: window %d days, max late %d minutes\n", p.OrganizationID, p.AdjustmentWindowDays, p.MaxLateMinutes)
	return nil
}

func (cli *commandLine) trail(sessionID, date string, filter attendance.TrailFilter) error {
	var d *attendance.Date
	if date != "" {
		parsed, err := attendance.ParseDate(date)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
		d = &parsed
	}

	trail, err := cli.attendanceSvc.Trail(context.Background(), cliActor, sessionID, d)
	if err != nil {
		return err
	}
	trail = attendance.FilterTrail(trail, filter, attendance.NowFunc())

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODIFIED AT\tDATE\tMEMBER\tCHANGE\tBY\tREASON")
	for _, rec := range trail {
		change := fmt.Sprintf("%s -> %s", rec.PreviousStatus, rec.NewStatus)
		if rec.LateMinutes != nil {
			change += fmt.Sprintf(" (%dm)", *rec.LateMinutes)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ModifiedAt.Format("2006-01-02 15:04:05"), rec.Date, rec.TargetUserName, change, rec.ModifiedBy.Name, rec.Reason)
	}
	return w.Flush()
}
