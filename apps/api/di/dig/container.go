package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/attendly/attendly/apps/api/echo"
	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	appfs "github.com/attendly/attendly/fs"
	emailsvc "github.com/attendly/attendly/services/email"
	logsvc "github.com/attendly/attendly/services/logger"
	"github.com/attendly/attendly/storage/cache/redisstate"
	"github.com/attendly/attendly/storage/database"
	sqlxrepos "github.com/attendly/attendly/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	MemberSvc     *member.Service
	AttendanceSvc *attendance.Service
	Validate      *validator.Validate
	Translator    ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
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

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newStateCache returns the Redis cache when an address is configured, no cache otherwise.
func newStateCache(conf *core.Config, logger core.Logger) attendance.StateCache {
	if conf.Redis.Addr == "" {
		return attendance.NoCache{}
	}
	client, err := redisstate.Connect(context.Background(), conf.Redis)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis, running without cache: %v", err), err)
		return attendance.NoCache{}
	}
	return redisstate.NewCache(client, conf.Redis.StateTTL)
}

func newEmailTemplates(conf *core.Config, logger core.Logger) *core.EmailTemplates {
	return core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
}

func newEmailService(conf *core.Config, tmpls *core.EmailTemplates, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), tmpls, logger, conf)
	}
	return emailsvc.NewSendgridService(tmpls, logger, conf)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

func newMemberService(db *sqlx.DB, validate *validator.Validate, conf *core.Config) *member.Service {
	return member.NewService(sqlxrepos.NewMemberRepository(db), sqlxrepos.NewPolicyRepository(db), validate, conf)
}

func newAttendanceService(
	db *sqlx.DB,
	memberSvc *member.Service,
	cache attendance.StateCache,
	mailSvc core.EmailService,
	logger core.Logger,
) *attendance.Service {
	return attendance.NewService(sqlxrepos.NewAttendanceRepository(db), memberSvc, memberSvc, cache, mailSvc, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		MemberSvc:     p.MemberSvc,
		AttendanceSvc: p.AttendanceSvc,
		Validate:      p.Validate,
		Translator:    p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newStateCache))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newMemberService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
