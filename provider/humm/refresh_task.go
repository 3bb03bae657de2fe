package humm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mstgnz/hummpay/infra/logger"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/prometheus/client_golang/prometheus"
)

// TypeRefreshPrerequisites is the asynq task type of the token refresh job.
const TypeRefreshPrerequisites = "humm:refresh_prerequisites"

// StoreLister lists the stores whose sessions are refreshed.
type StoreLister interface {
	ListStores(ctx context.Context) ([]store.Store, error)
}

// RefreshReport summarizes one run of the refresh job.
type RefreshReport struct {
	Refreshed []int64
	Failed    []int64
}

// RefreshTask renews the access token and instance URL of every store.
type RefreshTask struct {
	stores  StoreLister
	factory *Factory
	runs    *prometheus.CounterVec
}

// NewRefreshTask creates the job. Store outcomes are counted on reg when it is not nil.
func NewRefreshTask(stores StoreLister, factory *Factory, reg prometheus.Registerer) *RefreshTask {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hummpay",
		Name:      "token_refresh_total",
		Help:      "Per store outcomes of the token refresh job.",
	}, []string{"outcome"})
	if reg != nil {
		if err := reg.Register(runs); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(fmt.Errorf("register token refresh counter: %w", err))
			}
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return &RefreshTask{stores: stores, factory: factory, runs: runs}
}

// Run refreshes every store in turn. A failing store is logged and skipped.
func (t *RefreshTask) Run(ctx context.Context) RefreshReport {
	var report RefreshReport

	stores, err := t.stores.ListStores(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("%s: could not list stores in the '%s' schedule task", SystemName, RefreshTaskName), err)
		return report
	}

	for _, st := range stores {
		if err := t.refreshStore(ctx, st); err != nil {
			report.Failed = append(report.Failed, st.ID)
			t.runs.WithLabelValues("failed").Inc()
			logger.Error(
				fmt.Sprintf("%s: error was occurred while updating the access token of store '%s' in the '%s' schedule task", SystemName, st.Name, RefreshTaskName),
				err,
				logger.LogContext{StoreID: st.ID, Provider: SystemName},
			)
			continue
		}
		report.Refreshed = append(report.Refreshed, st.ID)
		t.runs.WithLabelValues("refreshed").Inc()
	}
	return report
}

func (t *RefreshTask) refreshStore(ctx context.Context, st store.Store) error {
	repo := t.factory.Settings()
	settings, err := repo.Load(ctx, st.ID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	result := t.factory.ForSettings(settings).GetPrerequisites(ctx, settings)
	if !result.Success {
		return errors.New(strings.Join(result.Errors, "\n"))
	}

	if err := repo.Save(ctx, settings.WithSession(result.AccessToken, result.InstanceURL)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	logger.Info(fmt.Sprintf("%s: access token refreshed", SystemName), logger.LogContext{StoreID: st.ID, Provider: SystemName})
	return nil
}

// ProcessTask implements asynq.Handler. Store failures never fail the task;
// the next tick retries them.
func (t *RefreshTask) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	t.Run(ctx)
	return nil
}

// NewRefreshPrerequisitesTask builds the task enqueued by the scheduler.
func NewRefreshPrerequisitesTask(interval time.Duration) *asynq.Task {
	return asynq.NewTask(TypeRefreshPrerequisites, nil,
		asynq.MaxRetry(0),
		asynq.Unique(interval),
	)
}

// RegisterRefreshSchedule schedules the refresh job every interval.
func RegisterRefreshSchedule(scheduler *asynq.Scheduler, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	cronspec := fmt.Sprintf("@every %ds", int64(interval/time.Second))
	return scheduler.Register(cronspec, NewRefreshPrerequisitesTask(interval))
}
