package tests

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/adamsassn/membership/core/contact"
	"github.com/adamsassn/membership/core/member"
	emailsvc "github.com/adamsassn/membership/services/email"
	testutil "github.com/adamsassn/membership/tests"
)

func submitMessage(t *testing.T, name, email, subject, body string) contact.Message {
	t.Helper()
	data := marchallObj(t, contact.NewMessage{Name: name, Email: email, Subject: subject, Message: body})
	req, rec := newRequest(http.MethodPost, "/v1/contact", data)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submitMessage() failed! code = %v: %s", rec.Code, rec.Body.String())
	}
	var msg contact.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	return msg
}

func Test_contactApi_submit(t *testing.T) {
	db.Reset()

	t.Run("required fields", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/contact")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name":"this field is required","email":"this field is required","subject":"this field is required","message":"this field is required"}`),
		}, rec)
	})

	t.Run("invalid email", func(t *testing.T) {
		data := marchallObj(t, contact.NewMessage{Name: "Jane", Email: "lol", Subject: "Hi", Message: "Hello there"})
		req, rec := newRequest(http.MethodPost, "/v1/contact", data)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"email must be a valid email address"}`),
		}, rec)
	})

	t.Run("submitted", func(t *testing.T) {
		emailsvc.SentMessages = nil

		msg := submitMessage(t, "Jane", "jane@test.in", "Membership question", "How long does approval take?")
		if msg.Status != contact.StatusNew {
			t.Errorf("failed! status = %v; want %v", msg.Status, contact.StatusNew)
		}

		// the association inbox is notified
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
		sent := emailsvc.SentMessages[0]
		if to := (mail.Address{Name: conf.AppName, Address: conf.ContactEmail}); sent.To[0] != to {
			t.Errorf("failed! To = %v; want %v", sent.To[0], to)
		}
		if !strings.Contains(sent.TextContent, "How long does approval take?") {
			t.Error("failed! message body not in notification")
		}
	})
}

func Test_contactApi_query(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	approved := testutil.CreateMember(t, mbrRepo, "Approved", "approved1", "approved@test.in", testPwd, member.RoleStudent, member.StatusApproved)
	adminToken := getToken(t, admin)

	first := submitMessage(t, "Jane", "jane@test.in", "First", "First message")
	second := submitMessage(t, "John", "john@test.in", "Second", "Second message")

	tests := []httpTest{
		{name: "Auth required", path: "/v1/contact", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/contact", token: getToken(t, approved),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/contact", token: adminToken, wantData: marchallList(t, first, second)},
		{name: "status=new", path: "/v1/contact?status=new", token: adminToken, wantData: marchallList(t, first, second)},
		{name: "status=replied", path: "/v1/contact?status=replied", token: adminToken, wantData: marchallList(t, []interface{}{}...)},
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

func Test_contactApi_retrieve(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	msg := submitMessage(t, "Jane", "jane@test.in", "Hi", "Hello there")

	t.Run("unknown message", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/contact/deadbeef", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "message not found"})}, rec)
	})

	t.Run("opening marks read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/contact/"+msg.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var opened contact.Message
		if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if opened.Status != contact.StatusRead {
			t.Errorf("failed! status = %v; want %v", opened.Status, contact.StatusRead)
		}
	})
}

func Test_contactApi_reply(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	msg := submitMessage(t, "Jane", "jane@test.in", "Hi", "Hello there")

	t.Run("reply required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/contact/"+msg.ID+"/reply", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"reply":"this field is required"}`)}, rec)
	})

	t.Run("replied", func(t *testing.T) {
		emailsvc.SentMessages = nil

		body := marchallObj(t, contact.Reply{Reply: "Usually about a week."})
		req, rec := newAuthRequest(http.MethodPut, "/v1/contact/"+msg.ID+"/reply", adminToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var replied contact.Message
		if err := json.Unmarshal(rec.Body.Bytes(), &replied); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if replied.Status != contact.StatusReplied {
			t.Errorf("failed! status = %v; want %v", replied.Status, contact.StatusReplied)
		}
		if replied.RepliedAt.IsZero() {
			t.Error("failed! repliedAt not set")
		}

		// the sender receives the response
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
		sent := emailsvc.SentMessages[0]
		if to := (mail.Address{Name: "Jane", Address: "jane@test.in"}); sent.To[0] != to {
			t.Errorf("failed! To = %v; want %v", sent.To[0], to)
		}
		if !strings.Contains(sent.TextContent, "Usually about a week.") {
			t.Error("failed! reply not in email")
		}
	})
}

func Test_contactApi_destroy(t *testing.T) {
	db.Reset()

	admin := testutil.CreateMember(t, mbrRepo, "Admin", "admin1", "admin@test.in", testPwd, member.RoleAdmin, member.StatusApproved)
	adminToken := getToken(t, admin)
	doomed := submitMessage(t, "Jane", "jane@test.in", "Hi", "Hello there")
	kept := submitMessage(t, "John", "john@test.in", "Yo", "Still here")

	req, rec := newAuthRequest(http.MethodDelete, "/v1/contact?id="+doomed.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/contact", adminToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, kept)}, rec)
}
