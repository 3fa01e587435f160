package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	appLog "aurionplan/internal/log"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		username string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's cached schedule as iCalendar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("--username is required")
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

			body, err := a.svc.Export(ctx, username)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return err
			}
			appLog.Info("calendar written", "path", output, "bytes", len(body))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Portal username")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
