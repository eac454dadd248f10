package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db            *sql.DB
	memberSvc     *member.Service
	attendanceSvc *attendance.Service
	out           io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]                                    - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -org ORG -role ROLE          - create a member, the password is prompted")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                                   - reset a member's password")
	_, _ = fmt.Fprintln(cli.out, "  setpolicy -org ORG -window DAYS -maxlate MINUTES             - set an organization's adjustment policy")
	_, _ = fmt.Fprintln(cli.out, "  trail -session SESSION [-date YYYY-MM-DD] [-search TEXT] [-since DAYS] - print the adjustment trail")
}

func (cli *commandLine) promptPassword(usage func()) (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The member's email.")
	addUserName := addUserCmd.String("name", "", "The member's full name.")
	addUserOrg := addUserCmd.String("org", "", "The member's organization.")
	addUserRole := addUserCmd.String("role", "END_USER", "One of PLATFORM_OWNER, ORG_SUPER_ADMIN, ORG_ADMIN, MANAGER, END_USER.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The member's email. The password will be prompted next.")

	setPolicyCmd := flag.NewFlagSet("setpolicy", flag.ExitOnError)
	setPolicyOrg := setPolicyCmd.String("org", "", "The organization.")
	setPolicyWindow := setPolicyCmd.Int("window", 30, "Days in the past an adjustment may target, 0 for no limit.")
	setPolicyMaxLate := setPolicyCmd.Int("maxlate", attendance.LateMinutesMax, "Maximum late minutes.")

	trailCmd := flag.NewFlagSet("trail", flag.ExitOnError)
	trailSession := trailCmd.String("session", "", "The session.")
	trailDate := trailCmd.String("date", "", "Only this occurrence (YYYY-MM-DD).")
	trailSearch := trailCmd.String("search", "", "Only entries mentioning this text.")
	trailSince := trailCmd.Int("since", 0, "Only entries of the last DAYS days.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" || *addUserOrg == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(member.NewMember{
			OrganizationID:  *addUserOrg,
			Name:            *addUserName,
			Email:           *addUserEmail,
			Role:            *addUserRole,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "setpolicy":
		if err := setPolicyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setPolicyOrg == "" {
			setPolicyCmd.Usage()
			return errHelp
		}
		return cli.setPolicy(member.UpdatePolicy{
			OrganizationID:       *setPolicyOrg,
			AdjustmentWindowDays: *setPolicyWindow,
			MaxLateMinutes:       *setPolicyMaxLate,
		})

	case "trail":
		if err := trailCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *trailSession == "" {
			trailCmd.Usage()
			return errHelp
		}
		return cli.trail(*trailSession, *trailDate, attendance.TrailFilter{SinceDays: *trailSince, SearchText: *trailSearch})

	default:
		cli.printUsage()
		return errHelp
	}
}
