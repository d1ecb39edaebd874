package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/adamsassn/membership/apps/api/echo"
	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/bulkmail"
	"github.com/adamsassn/membership/core/contact"
	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/notice"
	"github.com/adamsassn/membership/core/rulebook"
	emailsvc "github.com/adamsassn/membership/services/email"
	logsvc "github.com/adamsassn/membership/services/logger"
	storagesvc "github.com/adamsassn/membership/services/storage"
	dummydb "github.com/adamsassn/membership/storage/database/dummy"
)

var (
	conf *core.Config
	app  Server
	db   *dummydb.DB

	mbrRepo    member.Repository
	catRepo    member.CategoryRequestRepository
	noticeRepo notice.Repository
	msgRepo    contact.Repository
	rbRepo     rulebook.Repository

	mbrSvc     member.Service
	storageSvc *storagesvc.FakeService
	runner     *bulkmail.Runner

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	// set up DB & repos
	var err error
	db, err = dummydb.Open()
	if err != nil {
		fmt.Printf("dummydb.Open(): %v", err)
		os.Exit(1)
	}
	mbrRepo = dummydb.NewMemberRepository(db)
	otpRepo := dummydb.NewOTPRepository(db)
	catRepo = dummydb.NewCategoryRequestRepository(db)
	noticeRepo = dummydb.NewAnnouncementRepository(db)
	msgRepo = dummydb.NewMessageRepository(db)
	rbRepo = dummydb.NewRulebookRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	storageSvc = storagesvc.NewFakeService()
	mbrSvc = member.NewServiceMock(mbrRepo, otpRepo, catRepo, mailSvc, storageSvc, logger, conf)
	noticeSvc := notice.NewService(noticeRepo)
	contactSvc := contact.NewService(msgRepo, mailSvc, conf)
	rbSvc := rulebook.NewService(rbRepo, storageSvc, logger, conf)
	runner = bulkmail.NewRunner(mailSvc, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	notice.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	member.LoadCommonPasswords(conf, logger)

	// set up server
	app = NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         logger,
			MemberSvc:      mbrSvc,
			NoticeSvc:      noticeSvc,
			ContactSvc:     contactSvc,
			RulebookSvc:    rbSvc,
			BulkMailRunner: runner,
			Validate:       validate,
			Translator:     translator,
		},
	)

	// run tests
	code := m.Run()

	// clean up
	runner.Close()

	os.Exit(code)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest builds a multipart/form-data request out of text fields and files.
func newMultipartRequest(t *testing.T, method, path, token string, fields map[string]string, files map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, val := range fields {
		if err := w.WriteField(name, val); err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
	}
	for name, filename := range files {
		fw, err := w.CreateFormFile(name, filename)
		if err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
		if _, err = io.WriteString(fw, "fake file content"); err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newMultipartRequest() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, mbr member.Member) string {
	claims := GetMemberClaims(mbr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func getPendingToken(t *testing.T, mbr member.Member) string {
	claims := GetPendingClaims(mbr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getPendingToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
