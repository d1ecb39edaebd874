package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	echoapi "github.com/adamsassn/membership/apps/api/echo"
	"github.com/adamsassn/membership/core/bulkmail"
	"github.com/adamsassn/membership/core/member"
	testutil "github.com/adamsassn/membership/tests"
)

func waitJobFinished(t *testing.T, id string) bulkmail.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := runner.Get(id)
		if err != nil {
			t.Fatalf("runner.Get() failed: %v", err)
		}
		if job.State == bulkmail.StateDone || job.State == bulkmail.StateCancelled {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("waitJobFinished() timed out")
	return bulkmail.Job{}
}

func Test_bulkMailApi(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	approved := testutil.CreateMember(t, mbrRepo, "Approved", "approved1", "approved@test.in", testPwd, member.RoleStudent, member.StatusApproved)
	testutil.CreateMember(t, mbrRepo, "Approved Two", "approved2", "approved2@test.in", "", member.RoleStudent, member.StatusApproved)
	testutil.CreateMember(t, mbrRepo, "Pending", "pending1", "pending@test.in", "", member.RoleStudent, member.StatusPending)
	adminToken := getToken(t, admin)

	enqueueBody := func(category string) []byte {
		return marchallObj(t, echoapi.BulkEmailRequest{
			Category: category,
			Subject:  "AGM notice",
			Message:  "The annual general meeting takes place next month.",
		})
	}

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bulk-email", getToken(t, approved), enqueueBody("Student"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("invalid category", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bulk-email", adminToken, enqueueBody("lol"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"category":"invalid category"}`)}, rec)
	})

	t.Run("no recipients", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bulk-email", adminToken, enqueueBody("PG Doctor"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "no recipients found"})}, rec)
	})

	var job bulkmail.Job
	t.Run("enqueued", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bulk-email", adminToken, enqueueBody("Student"))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusAccepted, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if job.ID == "" {
			t.Fatal("failed! empty job ID")
		}
		// pending members are not included
		if job.Total != 2 {
			t.Errorf("failed! total = %d; want 2", job.Total)
		}
	})

	t.Run("status", func(t *testing.T) {
		done := waitJobFinished(t, job.ID)
		if done.State != bulkmail.StateDone {
			t.Errorf("failed! state = %v; want %v", done.State, bulkmail.StateDone)
		}
		if done.Sent != job.Total {
			t.Errorf("failed! sent = %d; want %d", done.Sent, job.Total)
		}

		req, rec := newAuthRequest(http.MethodGet, "/v1/bulk-email/"+job.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, done)}, rec)
	})

	t.Run("unknown job", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/bulk-email/deadbeef", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "job not found"})}, rec)
	})

	t.Run("cancel finished job", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/bulk-email/"+job.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "job already finished"})}, rec)
	})
}
