package main

import (
	"fmt"

	"github.com/Dan9191/rent-service/internal/reminder"
	"github.com/Dan9191/rent-service/internal/utils/email"
	"github.com/spf13/cobra"
)

func remindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send the increment reminder digest now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			if !env.cfg.SMTPEnabled() {
				return fmt.Errorf("SMTP_HOST and SENDER_EMAIL must be set to send reminders")
			}
			s := reminder.NewScheduler(env.svc, email.NewSender(env.cfg, env.log), env.cfg.ReminderRecipient, env.log)
			outcome, err := s.RunOnce(ctx, env.svc.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
}
