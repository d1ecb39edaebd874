package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/adamsassn/membership/apps/api/echo"
	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/rulebook"
	testutil "github.com/adamsassn/membership/tests"
)

func uploadRulebook(t *testing.T, token, title, filename string, active bool) rulebook.Rulebook {
	t.Helper()
	fields := map[string]string{"title": title}
	if active {
		fields["is_active"] = "true"
	}
	req, rec := newMultipartRequest(t, http.MethodPost, "/v1/rulebooks", token, fields, map[string]string{"pdf_file": filename})
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("uploadRulebook() failed! code = %v: %s", rec.Code, rec.Body.String())
	}
	var rb rulebook.Rulebook
	if err := json.Unmarshal(rec.Body.Bytes(), &rb); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	return rb
}

func Test_rulebookApi_active(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)

	t.Run("no active rulebook", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/rulebook")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "no active rulebook found"})}, rec)
	})

	rb := uploadRulebook(t, getToken(t, admin), "Rules 2026", "rules-2026.pdf", true)

	t.Run("active rulebook with link", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/rulebook")
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var respData echoapi.ActiveRulebookResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if respData.ID != rb.ID {
			t.Errorf("failed! id = %q; want %q", respData.ID, rb.ID)
		}
		if respData.URL == "" {
			t.Error("failed! empty url")
		}
	})
}

func Test_rulebookApi_upload(t *testing.T) {
	db.Reset()

	approved := testutil.CreateMember(t, mbrRepo, "Approved", "approved1", "approved@test.in", testPwd, member.RoleStudent, member.StatusApproved)
	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/rulebooks", getToken(t, approved),
			map[string]string{"title": "Rules"}, map[string]string{"pdf_file": "rules.pdf"})
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("title required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/rulebooks", adminToken,
			nil, map[string]string{"pdf_file": "rules.pdf"})
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"title":"this field is required"}`)}, rec)
	})

	t.Run("file required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/rulebooks", adminToken,
			map[string]string{"title": "Rules"}, nil)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"pdf_file":"no PDF file provided"}`)}, rec)
	})

	t.Run("PDF only", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/rulebooks", adminToken,
			map[string]string{"title": "Rules"}, map[string]string{"pdf_file": "rules.docx"})
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"pdf_file":"file must be a PDF"}`)}, rec)
	})

	t.Run("uploaded", func(t *testing.T) {
		rb := uploadRulebook(t, adminToken, "Rules 2026", "rules-2026.pdf", false)
		if rb.IsActive {
			t.Error("failed! rulebook unexpectedly active")
		}
		if rb.UploadedBy != admin.ID {
			t.Errorf("failed! uploadedBy = %q; want %q", rb.UploadedBy, admin.ID)
		}
		if !storageSvc.Exists(rb.ObjectKey) {
			t.Errorf("failed! object %s not stored", rb.ObjectKey)
		}
	})

	t.Run("activating a new upload deactivates the rest", func(t *testing.T) {
		first := uploadRulebook(t, adminToken, "Rules 2025", "rules-2025.pdf", true)
		second := uploadRulebook(t, adminToken, "Rules 2027", "rules-2027.pdf", true)

		req, rec := newAuthRequest(http.MethodGet, "/v1/rulebooks", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var rbs []rulebook.Rulebook
		if err := json.Unmarshal(rec.Body.Bytes(), &rbs); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		for _, rb := range rbs {
			if rb.ID == first.ID && rb.IsActive {
				t.Error("failed! previous rulebook still active")
			}
			if rb.ID == second.ID && !rb.IsActive {
				t.Error("failed! new rulebook not active")
			}
		}
	})
}

func Test_rulebookApi_activate(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	first := uploadRulebook(t, adminToken, "Rules 2025", "rules-2025.pdf", true)
	second := uploadRulebook(t, adminToken, "Rules 2026", "rules-2026.pdf", false)

	t.Run("unknown rulebook", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/rulebooks/deadbeef/activate", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "rulebook not found"})}, rec)
	})

	t.Run("activated", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/rulebooks/"+second.ID+"/activate", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var rb rulebook.Rulebook
		if err := json.Unmarshal(rec.Body.Bytes(), &rb); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if !rb.IsActive {
			t.Error("failed! rulebook not active")
		}

		// the previously active one was deactivated
		req, rec = newRequest(http.MethodGet, "/v1/rulebook")
		app.ServeHTTP(rec, req)
		var respData echoapi.ActiveRulebookResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if respData.ID != second.ID {
			t.Errorf("failed! active id = %q; want %q", respData.ID, second.ID)
		}
		if respData.ID == first.ID {
			t.Error("failed! previous rulebook still active")
		}
	})

	t.Run("deactivated", func(t *testing.T) {
		body := marchallObj(t, echoapi.ActivateRequest{Active: bPtr(false)})
		req, rec := newAuthRequest(http.MethodPut, "/v1/rulebooks/"+second.ID+"/activate", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var rb rulebook.Rulebook
		if err := json.Unmarshal(rec.Body.Bytes(), &rb); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if rb.IsActive {
			t.Error("failed! rulebook still active")
		}
	})
}

func Test_rulebookApi_destroy(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	doomed := uploadRulebook(t, adminToken, "Rules 2025", "rules-2025.pdf", false)
	kept := uploadRulebook(t, adminToken, "Rules 2026", "rules-2026.pdf", true)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/rulebooks?id="+doomed.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	// the stored PDF is gone with the record
	if storageSvc.Exists(doomed.ObjectKey) {
		t.Errorf("failed! object %s still stored", doomed.ObjectKey)
	}
	if !storageSvc.Exists(kept.ObjectKey) {
		t.Errorf("failed! object %s missing", kept.ObjectKey)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/rulebooks", adminToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, kept)}, rec)
}
