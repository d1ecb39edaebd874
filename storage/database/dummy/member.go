package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/member"
)

type memberRepository struct {
	db *memberTable
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *DB) *memberRepository {
	return &memberRepository{db: db.member}
}

func (repo *memberRepository) query() []member.Member {
	members := make([]member.Member, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		members = append(members, *m)
	}
	return members
}

func (repo *memberRepository) CheckUniqueness(ctx context.Context, username, email, whatsapp, mobile string, excluded ...member.Member) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	isExcluded := func(mbr member.Member) bool {
		for _, ex := range excluded {
			if ex.ID == mbr.ID {
				return true
			}
		}
		return false
	}

	for _, mbr := range repo.query() {
		if isExcluded(mbr) {
			continue
		}
		switch {
		case mbr.Username == username:
			return member.ErrUsernameExists
		case mbr.Email == email:
			return member.ErrEmailExists
		case mbr.WhatsappNumber == whatsapp:
			return member.ErrWhatsappNumberExists
		case mbr.MobileNumber == mobile:
			return member.ErrMobileNumberExists
		}
	}
	return nil
}

func (repo *memberRepository) CreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	mbr.ID = uuid.New().String()
	repo.db.table[mbr.ID] = &mbr
	return mbr, nil
}

func (repo *memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if mbr, ok := repo.db.table[filter.ID]; ok {
			return *mbr, nil
		}
	case filter.Username != "":
		for _, mbr := range repo.query() {
			if mbr.Username == filter.Username {
				return mbr, nil
			}
		}
	case filter.Email != "":
		for _, mbr := range repo.query() {
			if mbr.Email == filter.Email {
				return mbr, nil
			}
		}
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		for _, mbr := range repo.query() {
			if (mbr.Username == uname) || (mbr.Email == email) {
				return mbr, nil
			}
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering) ([]member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := repo.query()

	if filter != nil {
		// members with search keyword matching FullName, Username or Email
		if filter.Search != "" {
			var filtered []member.Member
			kw := strings.ToLower(filter.Search)
			for _, m := range members {
				if strings.Contains(strings.ToLower(m.FullName), kw) ||
					strings.Contains(strings.ToLower(m.Username), kw) ||
					strings.Contains(strings.ToLower(m.Email), kw) {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && filter.Role != "" {
			var filtered []member.Member
			for _, m := range members {
				if string(m.Role) == filter.Role {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && filter.Status != "" {
			var filtered []member.Member
			for _, m := range members {
				if string(m.Status) == filter.Status {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && filter.Category != "" {
			var filtered []member.Member
			for _, m := range members {
				if string(m.Category) == filter.Category {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && !filter.CreatedFrom.IsZero() {
			var filtered []member.Member
			timeUTC := filter.CreatedFrom.UTC()
			for _, m := range members {
				if m.CreatedAt.Equal(timeUTC) || m.CreatedAt.After(timeUTC) {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && !filter.CreatedTo.IsZero() {
			var filtered []member.Member
			timeUTC := filter.CreatedTo.UTC()
			for _, m := range members {
				if m.CreatedAt.Before(timeUTC) || m.CreatedAt.Equal(timeUTC) {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
	}

	sortMembers(members, ordering)
	return members, nil
}

func sortMembers(members []member.Member, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0]
	sort.SliceStable(members, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "full_name":
			less = members[i].FullName < members[j].FullName
		case "username":
			less = members[i].Username < members[j].Username
		case "created_at":
			less = members[i].CreatedAt.Before(members[j].CreatedAt)
		default:
			return false
		}
		if !ord.Ascending {
			return !less
		}
		return less
	})
}

func (repo *memberRepository) UpdateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[mbr.ID]; !ok {
		return member.Member{}, member.ErrNotFound
	}
	repo.db.table[mbr.ID] = &mbr
	return mbr, nil
}

func (repo *memberRepository) UpdateOrCreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	if mbr.ID == "" {
		return repo.CreateMember(ctx, mbr)
	}
	return repo.UpdateMember(ctx, mbr)
}

func (repo *memberRepository) DeleteMembersByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

type otpRepository struct {
	db *otpTable
}

var _ member.OTPRepository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *DB) *otpRepository {
	return &otpRepository{db: db.otp}
}

func (repo *otpRepository) UpsertOTP(ctx context.Context, otp member.OTP) (member.OTP, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[otp.MemberID] = &otp
	return otp, nil
}

func (repo *otpRepository) GetOTP(ctx context.Context, memberID string) (member.OTP, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if otp, ok := repo.db.table[memberID]; ok {
		return *otp, nil
	}
	return member.OTP{}, member.ErrOTPNotFound
}

func (repo *otpRepository) DeleteOTP(ctx context.Context, memberID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, memberID)
	return nil
}

type categoryRequestRepository struct {
	db *categoryRequestTable
}

var _ member.CategoryRequestRepository = (*categoryRequestRepository)(nil) // interface compliance check

func NewCategoryRequestRepository(db *DB) *categoryRequestRepository {
	return &categoryRequestRepository{db: db.categoryReq}
}

func (repo *categoryRequestRepository) query() []member.CategoryChangeRequest {
	reqs := make([]member.CategoryChangeRequest, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		reqs = append(reqs, *r)
	}
	return reqs
}

func (repo *categoryRequestRepository) CreateCategoryRequest(ctx context.Context, req member.CategoryChangeRequest) (member.CategoryChangeRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	req.ID = uuid.New().String()
	repo.db.table[req.ID] = &req
	return req, nil
}

func (repo *categoryRequestRepository) GetCategoryRequest(ctx context.Context, id string) (member.CategoryChangeRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if req, ok := repo.db.table[id]; ok {
		return *req, nil
	}
	return member.CategoryChangeRequest{}, member.ErrRequestNotFound
}

func (repo *categoryRequestRepository) GetPendingCategoryRequest(ctx context.Context, memberID string) (member.CategoryChangeRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, req := range repo.query() {
		if req.MemberID == memberID && req.IsPending() {
			return req, nil
		}
	}
	return member.CategoryChangeRequest{}, member.ErrRequestNotFound
}

func (repo *categoryRequestRepository) QueryCategoryRequests(ctx context.Context, filter *member.CategoryRequestFilter, ordering []core.DBOrdering) ([]member.CategoryChangeRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := repo.query()

	if filter != nil {
		if filter.MemberID != "" {
			var filtered []member.CategoryChangeRequest
			for _, r := range reqs {
				if r.MemberID == filter.MemberID {
					filtered = append(filtered, r)
				}
			}
			reqs = filtered
		}
		if reqs != nil && filter.Status != "" {
			var filtered []member.CategoryChangeRequest
			for _, r := range reqs {
				if string(r.Status) == filter.Status {
					filtered = append(filtered, r)
				}
			}
			reqs = filtered
		}
	}

	if len(ordering) > 0 && ordering[0].Field == "requested_at" {
		asc := ordering[0].Ascending
		sort.SliceStable(reqs, func(i, j int) bool {
			less := reqs[i].RequestedAt.Before(reqs[j].RequestedAt)
			if !asc {
				return !less
			}
			return less
		})
	}
	return reqs, nil
}

func (repo *categoryRequestRepository) UpdateCategoryRequest(ctx context.Context, req member.CategoryChangeRequest) (member.CategoryChangeRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[req.ID]; !ok {
		return member.CategoryChangeRequest{}, member.ErrRequestNotFound
	}
	repo.db.table[req.ID] = &req
	return req, nil
}
