package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/adamsassn/membership/apps/api/echo"
	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/bulkmail"
	"github.com/adamsassn/membership/core/contact"
	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/notice"
	"github.com/adamsassn/membership/core/rulebook"
	emailsvc "github.com/adamsassn/membership/services/email"
	logsvc "github.com/adamsassn/membership/services/logger"
	storagesvc "github.com/adamsassn/membership/services/storage"
	"github.com/adamsassn/membership/storage/database"
	sqlxrepos "github.com/adamsassn/membership/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	storageSvc, err := storagesvc.NewMinioService(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}
	if err = storageSvc.EnsureBucket(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("ensuring storage bucket: %v", err), err)
	}

	mbrSvc := member.NewService(
		sqlxrepos.NewMemberRepository(db),
		sqlxrepos.NewOTPRepository(db),
		sqlxrepos.NewCategoryRequestRepository(db),
		mailSvc, storageSvc, logger, conf,
	)
	noticeSvc := notice.NewService(sqlxrepos.NewAnnouncementRepository(db))
	contactSvc := contact.NewService(sqlxrepos.NewMessageRepository(db), mailSvc, conf)
	rbSvc := rulebook.NewService(sqlxrepos.NewRulebookRepository(db), storageSvc, logger, conf)
	runner := bulkmail.NewRunner(mailSvc, logger)
	defer runner.Close()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	notice.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	member.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
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

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
