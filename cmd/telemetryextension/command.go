// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/open-telemetry/opentelemetry-lambda/extension/config"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/version"
)

func newCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "telemetryextension",
		Short:        "Collects function telemetry and exports it over OTLP",
		Long:         "Collects function telemetry and exports it over OTLP. Configuration is read from " + config.Prefix + "_* environment variables.",
		Version:      version.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdout)
		},
	}
	cmd.SetVersionTemplate(version.InfoVar().String())
	return cmd
}
