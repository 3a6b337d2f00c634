package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"remotefile/config"
)

type Runner struct {
	Config          *config.Config
	TransferManager *TransferManager
	Cron            *cron.Cron
	Log             logrus.FieldLogger
}

func NewRunner(cfg *config.Config, tm *TransferManager, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	// A job still transferring when its next tick fires is skipped, not doubled.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))))
	return &Runner{
		Config:          cfg,
		TransferManager: tm,
		Cron:            c,
		Log:             log,
	}
}

// Start schedules every job that has a cron expression and kicks off run_on_start
// jobs in the background. Jobs that cannot be scheduled are reported together.
func (r *Runner) Start(ctx context.Context) error {
	var result *multierror.Error
	for _, job := range r.Config.Jobs {
		job := job
		log := r.Log.WithField("job", job.Name)

		if job.Cron != "" {
			_, err := r.Cron.AddFunc(job.Cron, func() {
				if err := r.TransferManager.RunJob(ctx, job); err != nil {
					log.WithError(err).Error("Job failed")
				}
			})
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("schedule job %s: %w", job.Name, err))
				continue
			}
			log.WithField("cron", job.Cron).Info("Scheduled job")
		}

		if job.RunOnStart {
			go func() {
				log.Info("Executing immediate run")
				if err := r.TransferManager.RunJob(ctx, job); err != nil {
					log.WithError(err).Error("Immediate run failed")
				}
			}()
		}
	}
	r.Cron.Start()
	return result.ErrorOrNil()
}

// Stop halts scheduling and returns a context done once running jobs finish.
func (r *Runner) Stop() context.Context {
	return r.Cron.Stop()
}

// RunOnce runs every configured job now, at most concurrency at a time, and
// returns all failures.
func (r *Runner) RunOnce(ctx context.Context, concurrency int) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		result *multierror.Error
	)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, job := range r.Config.Jobs {
		job := job
		g.Go(func() error {
			if err := r.TransferManager.RunJob(ctx, job); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("job %s: %w", job.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return result.ErrorOrNil()
}
