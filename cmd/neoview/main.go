// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/HibernalGlow/neoview-upscale/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "neoview-upscale",
		Short: "Super-resolution scheduling service for the neoview reader",
		Long: `neoview-upscale schedules image super-resolution work for the neoview
reader: it matches pages against user-defined conditions, preloads the
pages around the reading position, and expands ahead while the reader
lingers.`,
	}

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outputJSON {
				data, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Println(buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}
