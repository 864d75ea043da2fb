// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/goscout/internal/replace"
	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/scout"
	"github.com/petar-djukic/goscout/pkg/types"
)

func newReplaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replace <target>...",
		Short: "Replace pattern occurrences in place",
		Long:  "Replace rewrites every occurrence of the pattern in the target files atomically, with optional backup, preview, and undo.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runReplace,
	}

	cmd.Flags().StringSliceP("pattern", "p", nil, "Pattern to replace (repeatable; required)")
	cmd.Flags().StringSliceP("replacement", "s", nil, "Replacement text, one per pattern (required)")
	cmd.Flags().BoolP("regex", "r", false, "Treat patterns as regular expressions (enables $1 capture templates)")
	cmd.Flags().StringP("boundary", "w", "none", "Boundary mode: none or whole-words")
	cmd.Flags().String("hyphens", "joining", "Hyphen handling: joining or boundary")
	cmd.Flags().BoolP("dry-run", "n", false, "Plan and preview without modifying any file")
	cmd.Flags().BoolP("backup", "b", false, "Copy originals into the backup directory before rewriting")
	cmd.Flags().StringP("output-dir", "o", "", "Backup directory (default: <undo-dir>/backups)")
	cmd.Flags().Bool("preserve", false, "Preserve file permissions and timestamps")
	cmd.Flags().Bool("preview", false, "Print changed-line pairs")
	cmd.MarkFlagRequired("pattern")
	cmd.MarkFlagRequired("replacement")

	return cmd
}

func runReplace(cmd *cobra.Command, args []string) error {
	patternTexts, _ := cmd.Flags().GetStringSlice("pattern")
	replacements, _ := cmd.Flags().GetStringSlice("replacement")
	if len(patternTexts) == 0 {
		return usageErr(types.ErrNoPatterns)
	}
	if len(replacements) != len(patternTexts) {
		return usageErr(fmt.Errorf("got %d patterns but %d replacements", len(patternTexts), len(replacements)))
	}

	boundaryStr, _ := cmd.Flags().GetString("boundary")
	boundary, err := types.ParseBoundaryMode(boundaryStr)
	if err != nil {
		return usageErr(err)
	}
	hyphenStr, _ := cmd.Flags().GetString("hyphens")
	hyphens, err := types.ParseHyphenMode(hyphenStr)
	if err != nil {
		return usageErr(err)
	}
	isRegex, _ := cmd.Flags().GetBool("regex")

	patterns := make([]replace.ReplacementPattern, len(patternTexts))
	for i, text := range patternTexts {
		patterns[i] = replace.ReplacementPattern{
			Definition: types.PatternDefinition{
				Text:     text,
				IsRegex:  isRegex,
				Boundary: boundary,
				Hyphens:  hyphens,
			},
			Template: replacements[i],
		}
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	backup, _ := cmd.Flags().GetBool("backup")
	backupDir, _ := cmd.Flags().GetString("output-dir")
	preserve, _ := cmd.Flags().GetBool("preserve")
	preview, _ := cmd.Flags().GetBool("preview")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := scout.Replace(ctx, scout.ReplaceOptions{
		Patterns:         patterns,
		Targets:          args,
		DryRun:           dryRun,
		Backup:           backup,
		BackupDir:        backupDir,
		PreserveMetadata: preserve,
		Preview:          preview,
		UndoDir:          viper.GetString("undo-dir"),
		Threads:          viper.GetInt("threads"),
		Logger:           logging.Default(),
	})
	if err != nil {
		var perr *types.InvalidPatternError
		var cerr *types.ConflictError
		switch {
		case errors.Is(err, types.ErrNoPatterns), errors.As(err, &perr):
			return usageErr(err)
		case errors.As(err, &cerr):
			return failureErr(err)
		default:
			return failureErr(err)
		}
	}

	for _, pv := range result.Previews {
		for i := range pv.LineNumbers {
			fmt.Printf("%s:%d\n- %s\n+ %s\n", pv.Path, pv.LineNumbers[i], pv.OriginalLines[i], pv.NewLines[i])
		}
	}

	verb := "replaced"
	if dryRun {
		verb = "would replace"
	}
	fmt.Printf("%s %d occurrences in %d files\n", verb, result.TotalEdits, result.FilesPlanned)
	if result.Record != nil && len(result.Record.Backups) > 0 {
		fmt.Printf("undo id: %d\n", result.Record.ID)
	}
	return nil
}
