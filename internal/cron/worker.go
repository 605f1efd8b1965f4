// Package cron runs the background job that keeps cached exchange rates
// fresh.
package cron

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gopenny/gopenny/internal/alerting"
	"github.com/gopenny/gopenny/internal/exchange"
	"github.com/gopenny/gopenny/internal/history"
	"github.com/gopenny/gopenny/internal/manager"
	"github.com/gopenny/gopenny/internal/metrics"
	"github.com/gopenny/gopenny/internal/notification"
	cronparse "github.com/robfig/cron/v3"
)

// intervalSettingKey is the settings row that overrides the refresh
// schedule at runtime.
const intervalSettingKey = "refresh_interval"

// advisoryLockKey coordinates workers sharing one Postgres history DB.
const advisoryLockKey int64 = 7706

const jobName = "refresh_rates"

// Config wires the worker's collaborators. Store, Alerter and Notifier are
// optional.
type Config struct {
	Manager       *manager.Manager
	Store         history.Store
	Alerter       *alerting.Alerter
	Notifier      *notification.Service
	NotifyEmailTo string

	// IntervalSetting is integer seconds or a standard cron expression.
	// A settings row in the history store overrides it at runtime.
	IntervalSetting string
}

// Run refreshes every cached currency pair live on the configured schedule
// until ctx is done. When the history store is Postgres-backed, an advisory
// lock ensures only one worker instance executes the job at a time.
func Run(ctx context.Context, cfg Config) error {
	intervalSetting := cfg.IntervalSetting
	if intervalSetting == "" {
		intervalSetting = "300"
	}

	// DB override wins over the environment.
	if cfg.Store != nil {
		if val, err := cfg.Store.GetSetting(ctx, intervalSettingKey); err == nil && val != "" {
			intervalSetting = val
		}
	}

	pg, _ := cfg.Store.(*history.PostgresPoolStore)

	// Control loop ticker (checks config updates and run time).
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// Run immediately on a fresh start, then follow the schedule.
	nextRun := time.Now()

	log.Printf("cron: worker starting, setting=%q advisory-lock=%t", intervalSetting, pg != nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if cfg.Store != nil {
				if val, err := cfg.Store.GetSetting(ctx, intervalSettingKey); err == nil && val != "" && val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = nextRunAfter(intervalSetting, time.Now())
				}
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			if pg != nil {
				ok, err := pg.AcquireAdvisoryLock(ctx, advisoryLockKey)
				if err != nil {
					log.Printf("cron: acquire advisory lock failed: %v", err)
					metrics.UpdateJobMetrics(jobName, started, err)
					nextRun = nextRunAfter(intervalSetting, time.Now())
					continue
				}
				if !ok {
					log.Printf("cron: advisory lock held by another worker, skipping run")
					nextRun = nextRunAfter(intervalSetting, time.Now())
					continue
				}
			}

			alert := refreshOnce(ctx, cfg.Manager)
			alert.JobName = jobName
			alert.Duration = time.Since(started)
			alert.Timestamp = started

			if pg != nil {
				if _, err := pg.ReleaseAdvisoryLock(ctx, advisoryLockKey); err != nil {
					log.Printf("cron: release advisory lock failed: %v", err)
				}
			}

			var runErr error
			if alert.FailedCount > 0 {
				runErr = exchange.ErrProviderUnavailable
			}
			metrics.UpdateJobMetrics(jobName, started, runErr)

			if alert.FailedCount > 0 {
				log.Printf("cron: job %s refreshed %d/%d pairs (duration=%s)",
					jobName, alert.SuccessCount, alert.TotalPairs, alert.Duration)
				notifyFailure(ctx, cfg, alert)
			} else {
				log.Printf("cron: job %s completed successfully, %d pairs (duration=%s)",
					jobName, alert.TotalPairs, alert.Duration)
			}

			nextRun = nextRunAfter(intervalSetting, time.Now())
		}
	}
}

// refreshOnce fetches every cached pair with the live strategy so the cache
// write-through replaces the stored rates.
func refreshOnce(ctx context.Context, m *manager.Manager) alerting.RefreshAlert {
	pairs := m.Cache().Pairs()

	alert := alerting.RefreshAlert{TotalPairs: len(pairs)}
	for _, pair := range pairs {
		if _, err := m.Rate(ctx, string(pair.Base), string(pair.Quote), "live"); err != nil {
			log.Printf("cron: refresh %s failed: %v", pair, err)
			alert.FailedCount++
			alert.Failures = append(alert.Failures, alerting.PairFailure{
				Pair:  pair.String(),
				Error: err.Error(),
			})
			continue
		}
		alert.SuccessCount++
	}
	return alert
}

func notifyFailure(ctx context.Context, cfg Config, alert alerting.RefreshAlert) {
	if cfg.Alerter != nil {
		if err := cfg.Alerter.SendRefreshAlert(ctx, alert); err != nil {
			log.Printf("cron: send alert failed: %v", err)
		}
	}
	if cfg.Notifier != nil && cfg.NotifyEmailTo != "" {
		if err := cfg.Notifier.SendOutageDigest(ctx, cfg.NotifyEmailTo, alert); err != nil {
			log.Printf("cron: send outage digest failed: %v", err)
		}
	}
}

// nextRunAfter interprets setting as integer seconds first, then as a
// standard cron expression, falling back to five minutes.
func nextRunAfter(setting string, after time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return after.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cronparse.ParseStandard(setting); err == nil {
		return sched.Next(after)
	}
	return after.Add(5 * time.Minute)
}
