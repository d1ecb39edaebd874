package dummydb

import (
	"sync"

	"github.com/adamsassn/membership/core/contact"
	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/notice"
	"github.com/adamsassn/membership/core/rulebook"
)

type (
	DB struct {
		member       *memberTable
		otp          *otpTable
		categoryReq  *categoryRequestTable
		announcement *announcementTable
		message      *messageTable
		rulebook     *rulebookTable
	}

	memberTable struct {
		sync.RWMutex
		table map[string]*member.Member
	}

	otpTable struct {
		sync.RWMutex
		table map[string]*member.OTP // keyed by member ID
	}

	categoryRequestTable struct {
		sync.RWMutex
		table map[string]*member.CategoryChangeRequest
	}

	announcementTable struct {
		sync.RWMutex
		table map[string]*notice.Announcement
	}

	messageTable struct {
		sync.RWMutex
		table map[string]*contact.Message
	}

	rulebookTable struct {
		sync.RWMutex
		table map[string]*rulebook.Rulebook
	}
)

func Open() (*DB, error) {
	db := &DB{
		member:       &memberTable{table: make(map[string]*member.Member)},
		otp:          &otpTable{table: make(map[string]*member.OTP)},
		categoryReq:  &categoryRequestTable{table: make(map[string]*member.CategoryChangeRequest)},
		announcement: &announcementTable{table: make(map[string]*notice.Announcement)},
		message:      &messageTable{table: make(map[string]*contact.Message)},
		rulebook:     &rulebookTable{table: make(map[string]*rulebook.Rulebook)},
	}
	return db, nil
}

// Reset empties all tables. For tests.
func (db *DB) Reset() {
	db.member.Lock()
	db.member.table = make(map[string]*member.Member)
	db.member.Unlock()

	db.otp.Lock()
	db.otp.table = make(map[string]*member.OTP)
	db.otp.Unlock()

	db.categoryReq.Lock()
	db.categoryReq.table = make(map[string]*member.CategoryChangeRequest)
	db.categoryReq.Unlock()

	db.announcement.Lock()
	db.announcement.table = make(map[string]*notice.Announcement)
	db.announcement.Unlock()

	db.message.Lock()
	db.message.table = make(map[string]*contact.Message)
	db.message.Unlock()

	db.rulebook.Lock()
	db.rulebook.table = make(map[string]*rulebook.Rulebook)
	db.rulebook.Unlock()
}
