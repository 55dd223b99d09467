package app

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	sweepEvery := a.appConfig.Session.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = 60
	}

	var err error
	_, err = a.sched.AddFunc(fmt.Sprintf("@every %ds", sweepEvery), func() {
		go a.SchedSweepIdleSessions()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		go a.SchedPruneLinkAttempts()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSweepIdleSessions terminates sessions that saw no activity inside the
// idle window.
func (a *Application) SchedSweepIdleSessions() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	removed := a.manager.SweepIdle()
	if len(removed) > 0 {
		zap.L().Info("idle session sweep", zap.Int("removed", len(removed)))
	}
}

// SchedPruneLinkAttempts removes link attempt records past the retention
// window.
func (a *Application) SchedPruneLinkAttempts() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	days := a.appConfig.Session.AuditRetention
	if days <= 0 {
		days = 30
	}
	a.auditLog.Prune(time.Hour * 24 * time.Duration(days))
}
