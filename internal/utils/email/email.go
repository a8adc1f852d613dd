package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dan9191/rent-service/internal/config"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendIncrementReminder mails a digest of customers whose rent increment needs attention
func (s *Sender) SendIncrementReminder(to string, alerts []models.CustomerAlert, now time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = ReminderSubject(alerts, now)
	e.Text = []byte(ReminderBody(alerts, now))

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// ReminderSubject summarises the digest in one line
func ReminderSubject(alerts []models.CustomerAlert, now time.Time) string {
	var overdue int
	for _, a := range alerts {
		if a.Increment.IsOverdue {
			overdue++
		}
	}
	subject := fmt.Sprintf("Rent increment reminder for %s: %d customer(s)", timeutil.FormatDate(now), len(alerts))
	if overdue > 0 {
		subject += fmt.Sprintf(", %d overdue", overdue)
	}
	return subject
}

// ReminderBody renders one paragraph per customer
func ReminderBody(alerts []models.CustomerAlert, now time.Time) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "The following rent increments need attention as of %s.\n\n", now.In(timeutil.IST).Format(timeutil.DisplayLayout))

	for _, a := range alerts {
		c, v := a.Customer, a.Increment
		fmt.Fprintf(&b, "%s (%s)\n", c.Name, c.PhoneNumber)
		switch {
		case v.IsOverdue:
			fmt.Fprintf(&b,
				"  Increment was due on %s and has not been applied.\n"+
					"  Rent moves from Rs %s to Rs %s (%s%%).\n",
				timeutil.FormatDate(v.NextIncrementDate), c.CurrentRent.StringFixed(2),
				v.ProjectedRent.StringFixed(2), c.IncreasePercentage.String())
		case a.Tier == models.TierDueToday:
			fmt.Fprintf(&b,
				"  Last increment date falls today. Current rent is Rs %s.\n",
				c.CurrentRent.StringFixed(2))
		default:
			fmt.Fprintf(&b,
				"  Next increment on %s. Rent will move from Rs %s by %s%%.\n",
				timeutil.FormatDate(v.NextIncrementDate), c.CurrentRent.StringFixed(2),
				c.IncreasePercentage.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("Best regards,\nRent Service")
	return b.String()
}
