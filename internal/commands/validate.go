package commands

import (
	"fmt"
	"io"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/service"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the Wise configuration step by step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			v := service.NewValidator(a.cfg.WiseEnvironment, a.cfg.WiseAPIToken, a.wise, a.discovery, a.logger)
			return printReport(cmd.OutOrStdout(), v.Validate(cmd.Context()))
		},
	}
}

// printReport writes one line per check and fails when any check failed.
func printReport(w io.Writer, report *domain.ValidationReport) error {
	for _, r := range report.Results {
		mark := "ok  "
		if !r.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, r.Message)
	}
	if !report.Healthy() {
		return &exitError{msg: "wise configuration check failed"}
	}
	return nil
}
