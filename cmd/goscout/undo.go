// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/scout"
)

func newListUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-undo",
		Short: "List recorded replacement operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			records, err := scout.ListUndo(viper.GetString("undo-dir"), logging.Default())
			if err != nil {
				return failureErr(err)
			}

			switch format {
			case "json":
				out, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return failureErr(err)
				}
				fmt.Println(string(out))
			case "text":
				if len(records) == 0 {
					fmt.Println("no undo records")
					return nil
				}
				for _, rec := range records {
					fmt.Printf("%d  %s  %d files  %s\n",
						rec.ID, rec.Description, rec.FileCount, humanize.IBytes(uint64(rec.TotalBytes)))
				}
			default:
				return usageErr(fmt.Errorf("unknown format %q", format))
			}
			return nil
		},
	}
	cmd.Flags().String("format", "text", "Output format: text or json")
	return cmd
}

func newUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo [id]",
		Short: "Revert a recorded replacement operation",
		Long:  "Undo restores the files of one recorded operation from their backups, then removes the backups and the record.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			var id int64
			if !all {
				if len(args) != 1 {
					return usageErr(fmt.Errorf("an undo id is required unless --all is set"))
				}
				parsed, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return usageErr(fmt.Errorf("invalid undo id %q", args[0]))
				}
				id = parsed
			}

			records, err := scout.Undo(viper.GetString("undo-dir"), id, all, dryRun, logging.Default())
			if err != nil {
				return failureErr(err)
			}

			verb := "restored"
			if dryRun {
				verb = "would restore"
			}
			for _, rec := range records {
				fmt.Printf("%s %d files from operation %d (%s)\n",
					verb, len(rec.Backups), rec.ID, rec.Description)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Revert every recorded operation, newest first")
	cmd.Flags().Bool("dry-run", false, "List the intended restorations without touching files")
	return cmd
}
