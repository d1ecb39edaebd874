package main

import (
	"context"
	"time"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/member"
)

// addMember updates or creates a member.Member.
// Members created here are approved right away; they never go through
// the registration flow.
func (cli *commandLine) addMember(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	mbr, err := cli.mbrRepo.GetMember(ctx, member.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if err != member.ErrNotFound {
			return err
		}
		mbr = member.Member{
			Username:  uname,
			Email:     email,
			FullName:  uname,
			Category:  member.CategoryStudent,
			Role:      member.RoleStudent,
			CreatedAt: time.Now().UTC(),
		}
	}
	if isAdmin {
		mbr.Role = member.RoleAdmin
	}
	mbr.Status = member.StatusApproved
	mbr.UpdatedAt = time.Now().UTC()
	if err := mbr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.mbrRepo.UpdateOrCreateMember(ctx, mbr); err != nil {
		return err
	}
	return nil
}
