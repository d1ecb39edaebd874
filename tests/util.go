package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/adamsassn/membership/core/member"
)

func CreateMember(
	t *testing.T,
	repo member.Repository,
	name, uname, email, pwd string,
	role member.Role,
	status member.Status,
	createdAt ...time.Time,
) member.Member {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	mbr := member.Member{
		FullName:  name,
		Username:  uname,
		Email:     email,
		Role:      role,
		Category:  member.CategoryStudent,
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := mbr.SetPassword(pwd); err != nil {
			t.Fatalf("createMember() failed: %v", err)
		}
	}
	mbr, err := repo.CreateMember(context.Background(), mbr)
	if err != nil {
		t.Fatalf("createMember() failed: %v", err)
	}
	return mbr
}
