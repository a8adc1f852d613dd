// Package reminder mails the daily rent increment digest.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/rent-service/internal/metrics"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReportSource builds the evaluated rent roll
type ReportSource interface {
	AlertReport(ctx context.Context, now time.Time) (*models.AlertReport, error)
}

// Mailer delivers one reminder digest
type Mailer interface {
	SendIncrementReminder(to string, alerts []models.CustomerAlert, now time.Time) error
}

// Outcome of a single reminder run
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeNothingDue  Outcome = "nothing_due"
	OutcomeNoRecipient Outcome = "no_recipient"
	OutcomeFailed      Outcome = "failed"
)

// Scheduler runs the reminder on a cron schedule in IST
type Scheduler struct {
	source    ReportSource
	mailer    Mailer
	recipient string
	log       *logrus.Logger
	cron      *cron.Cron
}

func NewScheduler(source ReportSource, mailer Mailer, recipient string, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		source:    source,
		mailer:    mailer,
		recipient: recipient,
		log:       log,
		cron:      cron.New(cron.WithLocation(timeutil.IST)),
	}
}

// Start registers the job and starts the cron loop
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx, timeutil.Now()); err != nil {
			s.log.Errorf("Reminder run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Infof("Reminder scheduled: %s (IST)", schedule)
	return nil
}

// Stop waits for a running job to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce evaluates every customer at now and mails a digest when anything needs attention
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Outcome, error) {
	report, err := s.source.AlertReport(ctx, now)
	if err != nil {
		metrics.RemindersSent.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, fmt.Errorf("failed to build alert report: %w", err)
	}
	metrics.ObserveReport(report)

	due := report.NeedsAttention()
	outcome := s.deliver(due, now)
	metrics.RemindersSent.WithLabelValues(string(outcome)).Inc()

	s.log.WithFields(logrus.Fields{
		"outcome":  outcome,
		"due":      len(due),
		"failures": len(report.Failures),
	}).Info("Reminder run finished")
	return outcome, nil
}

func (s *Scheduler) deliver(due []models.CustomerAlert, now time.Time) Outcome {
	if len(due) == 0 {
		return OutcomeNothingDue
	}
	if s.recipient == "" {
		s.log.Warnf("%d customer(s) need attention but REMINDER_RECIPIENT is not set", len(due))
		return OutcomeNoRecipient
	}
	if err := s.mailer.SendIncrementReminder(s.recipient, due, now); err != nil {
		s.log.Errorf("Failed to send reminder: %v", err)
		return OutcomeFailed
	}
	return OutcomeSent
}
