package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipsight/internal/deps"
)

const healthCheckTimeout = 30 * time.Second

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipAPI bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify external tools and vision API connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(os.Stdout)

			failed := false
			for _, status := range deps.CheckBinaries(deps.Required(cfg)) {
				kind := statusOK
				switch {
				case status.Fatal():
					kind = statusError
					failed = true
				case !status.Available:
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, status.Detail, colorize))
			}

			fmt.Fprintln(out, apiStatusLine(cmd.Context(), ctx, skipAPI, colorize, &failed))

			if failed {
				return fmt.Errorf("dependency check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipAPI, "skip-api", false, "Skip the vision API connectivity probe")
	return cmd
}

func apiStatusLine(parent context.Context, ctx *commandContext, skipAPI bool, colorize bool, failed *bool) string {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		*failed = true
		return renderStatusLine("Vision API", statusError, err.Error(), colorize)
	}
	if strings.TrimSpace(cfg.Vision.APIKey) == "" {
		*failed = true
		return renderStatusLine("Vision API", statusError, "Missing API key", colorize)
	}
	if skipAPI {
		return renderStatusLine("Vision API", statusInfo, "Probe skipped", colorize)
	}
	client, err := ctx.newVisionClient()
	if err != nil {
		*failed = true
		return renderStatusLine("Vision API", statusError, err.Error(), colorize)
	}
	probeCtx, cancel := context.WithTimeout(parent, healthCheckTimeout)
	defer cancel()
	if err := client.HealthCheck(probeCtx); err != nil {
		*failed = true
		return renderStatusLine("Vision API", statusError, err.Error(), colorize)
	}
	return renderStatusLine("Vision API", statusOK, fmt.Sprintf("Model %s reachable", client.Model()), colorize)
}
