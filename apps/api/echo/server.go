package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/bulkmail"
	"github.com/adamsassn/membership/core/contact"
	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/notice"
	"github.com/adamsassn/membership/core/rulebook"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		MemberSvc      member.Service
		NoticeSvc      notice.Service
		ContactSvc     contact.Service
		RulebookSvc    rulebook.Service
		BulkMailRunner *bulkmail.Runner
		Validate       *validator.Validate
		Translator     ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps         *ServerDeps
		app          *echo.Echo
		errChan      chan error
		shutdownChan chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:         &deps,
		app:          echo.New(),
		errChan:      make(chan error, 1),
		shutdownChan: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownChan, os.Interrupt, syscall.SIGTERM)

	initAuth(deps.Conf)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerMemberAPI(v1, jwt, s.deps.MemberSvc, s.deps.Validate)
	registerNoticeAPI(v1, jwt, s.deps.NoticeSvc, s.deps.Validate)
	registerContactAPI(v1, jwt, s.deps.ContactSvc, s.deps.Validate)
	registerRulebookAPI(v1, jwt, s.deps.RulebookSvc, s.deps.Validate)
	registerBulkMailAPI(v1, jwt, s.deps.BulkMailRunner, s.deps.MemberSvc, s.deps.Validate)
}

func (s *server) Start() {
	s.errChan <- s.app.Start(s.deps.Conf.Server.Addr)
}

func (s *server) Errors() <-chan error {
	return s.errChan
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownChan
}

// signalShutdown is called by the error handler on unrecoverable errors.
func (s *server) signalShutdown() {
	s.shutdownChan <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the ADAMS Membership API!")
}
