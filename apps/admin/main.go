package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	logsvc "github.com/attendly/attendly/services/logger"
	"github.com/attendly/attendly/storage/database"
	sqlxrepos "github.com/attendly/attendly/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	memberSvc := member.NewService(sqlxrepos.NewMemberRepository(db), sqlxrepos.NewPolicyRepository(db), validate, conf)

	// start CLI
	cli := commandLine{
		db:            db.DB,
		memberSvc:     memberSvc,
		attendanceSvc: attendance.NewService(sqlxrepos.NewAttendanceRepository(db), memberSvc, memberSvc, nil, nil, logger),
		out:           os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if !errors.Is(err, errHelp) {
			logger.Error(fmt.Sprintf("\nerror: %s", err), err)
		}
		os.Exit(1)
	}
}
