package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/adamsassn/membership/core/member"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	mbrRepo member.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addmember -username USERNAME -email EMAIL [-admin] - update or create a member")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset member's password")
	fmt.Println("  migrate SUBCOMMAND [args] - run database migrations (see goose)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addMemberCmd := flag.NewFlagSet("addmember", flag.ExitOnError)
	addMemberUname := addMemberCmd.String("username", "", "The member's username. The password will be prompted next.")
	addMemberEmail := addMemberCmd.String("email", "", "The member's email.")
	addMemberAdmin := addMemberCmd.Bool("admin", false, "Grant the member admin rights.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The member's username or email. The password will be prompted next.")

	switch args[1] {
	case "addmember":
		if err := addMemberCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addMemberUname == "" || *addMemberEmail == "" {
			addMemberCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addMemberCmd.Usage()
			return errHelp
		}
		return cli.addMember(*addMemberUname, *addMemberEmail, pwd, *addMemberAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
