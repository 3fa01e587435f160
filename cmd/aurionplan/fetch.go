package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appLog "aurionplan/internal/log"
)

const passwordEnv = "AURION_PASSWORD"

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var (
		username string
		password string
		asICS    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Log in once, print the schedule and refresh the cache",
		Long: "Runs the login and extraction pipeline a single time and prints the\n" +
			"normalized events as JSON (or iCalendar with --ics). The password may be\n" +
			"given through the " + passwordEnv + " environment variable.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if username == "" || password == "" {
				return errors.New("--username and a password are required")
			}

			conf, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, conf)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(ctx); err != nil {
					appLog.Error("cleanup failed", err)
				}
			}()

			events, err := a.svc.Fetch(ctx, username, password)
			if err != nil {
				return fmt.Errorf("fetch schedule: %w", err)
			}

			out := cmd.OutOrStdout()
			if asICS {
				body, err := a.svc.ExportEvents(events)
				if err != nil {
					return err
				}
				_, err = out.Write(body)
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Portal username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Portal password (or $"+passwordEnv+")")
	cmd.Flags().BoolVar(&asICS, "ics", false, "Print iCalendar instead of JSON")
	return cmd
}
