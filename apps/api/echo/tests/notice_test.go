package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/notice"
	testutil "github.com/adamsassn/membership/tests"
)

func createAnnouncement(t *testing.T, text string, vis notice.Visibility, createdBy string) notice.Announcement {
	t.Helper()
	svc := notice.NewService(noticeRepo)
	ann, err := svc.Create(context.Background(), notice.NewAnnouncement{Text: text, Visibility: string(vis)}, createdBy)
	if err != nil {
		t.Fatalf("createAnnouncement() failed: %v", err)
	}
	return ann
}

func Test_noticeApi_query(t *testing.T) {
	db.Reset()

	approved := testutil.CreateMember(t, mbrRepo, "Approved", "approved1", "approved@test.in", testPwd, member.RoleStudent, member.StatusApproved)
	pub := createAnnouncement(t, "General meeting on Friday", notice.VisibilityPublic, "")
	private := createAnnouncement(t, "Members-only webinar link", notice.VisibilityMembers, "")

	tests := []httpTest{
		{name: "public list hides members-only", path: "/v1/notices", wantData: marchallList(t, pub)},
		{
			name: "full list requires auth", path: "/v1/notices/all", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "full list rejects pending token", path: "/v1/notices/all", token: getPendingToken(t, approved),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "verification code required"}),
		},
		{name: "full list", path: "/v1/notices/all", token: getToken(t, approved), wantData: marchallList(t, pub, private)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_noticeApi_create(t *testing.T) {
	db.Reset()

	approved := testutil.CreateMember(t, mbrRepo, "Approved", "approved1", "approved@test.in", testPwd, member.RoleStudent, member.StatusApproved)
	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)

	newAnn := func(text, link, vis string) []byte {
		return marchallObj(t, notice.NewAnnouncement{Text: text, HyperLink: link, Visibility: vis})
	}

	tests := []httpTest{
		{
			name: "Admin required", token: getToken(t, approved), body: newAnn("hello", "", "public"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"announcement":"this field is required","visibility":"this field is required"}`),
		},
		{
			name: "invalid visibility", token: adminToken, body: newAnn("hello", "", "lol"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"visibility":"invalid visibility"}`),
		},
		{
			name: "invalid hyperlink", token: adminToken, body: newAnn("hello", "not-a-url", "public"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"hyper_link":"hyper_link must be a valid URL"}`),
		},
		{name: "created", token: adminToken, body: newAnn("hello", "https://example.org", "public"), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/notices"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var ann notice.Announcement
				if err := json.Unmarshal(rec.Body.Bytes(), &ann); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if ann.CreatedBy != admin.ID {
					t.Errorf("failed! createdBy = %q; want %q", ann.CreatedBy, admin.ID)
				}
				if ann.Visibility != notice.VisibilityPublic {
					t.Errorf("failed! visibility = %v; want %v", ann.Visibility, notice.VisibilityPublic)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_noticeApi_update(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	ann := createAnnouncement(t, "old text", notice.VisibilityPublic, admin.ID)

	t.Run("unknown announcement", func(t *testing.T) {
		body := marchallObj(t, notice.UpdateAnnouncement{Text: "new text"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/notices/deadbeef", adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "announcement not found"})}, rec)
	})

	t.Run("updated", func(t *testing.T) {
		body := marchallObj(t, notice.UpdateAnnouncement{Text: "new text", Visibility: "members"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/notices/"+ann.ID, adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var updated notice.Announcement
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if updated.Text != "new text" {
			t.Errorf("failed! text = %q; want %q", updated.Text, "new text")
		}
		if updated.Visibility != notice.VisibilityMembers {
			t.Errorf("failed! visibility = %v; want %v", updated.Visibility, notice.VisibilityMembers)
		}
	})
}

func Test_noticeApi_destroy(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	doomed := createAnnouncement(t, "to be removed", notice.VisibilityPublic, admin.ID)
	kept := createAnnouncement(t, "to be kept", notice.VisibilityPublic, admin.ID)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/notices?id="+doomed.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	req, rec = newRequest(http.MethodGet, "/v1/notices")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, kept)}, rec)
}
