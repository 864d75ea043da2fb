// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/scout"
	"github.com/petar-djukic/goscout/pkg/types"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <pattern>... <root>",
		Short: "Search a source tree for patterns",
		Long:  "Search scans every text file under the root path for one or more patterns and prints the matches in walker order.",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSearch,
	}

	cmd.Flags().StringSliceP("extensions", "e", nil, "Only search files with these extensions")
	cmd.Flags().StringSlice("ignore", nil, "Ignore patterns (gitignore-style)")
	cmd.Flags().BoolP("regex", "r", false, "Treat patterns as regular expressions")
	cmd.Flags().StringP("boundary", "w", "none", "Boundary mode: none or whole-words")
	cmd.Flags().String("hyphens", "joining", "Hyphen handling: joining or boundary")
	cmd.Flags().String("encoding", "fail-fast", "Encoding mode: fail-fast or lossy")
	cmd.Flags().IntP("before", "B", 0, "Context lines before each match")
	cmd.Flags().IntP("after", "A", 0, "Context lines after each match")
	cmd.Flags().Bool("incremental", false, "Reuse results of the previous run for unchanged files")
	cmd.Flags().String("cache-path", "", "Incremental cache file location")
	cmd.Flags().String("cache-strategy", "auto", "Change detection: auto, signature, or git")
	cmd.Flags().Int64("max-cache-size", 0, "Evict cache entries beyond this many bytes (0 = unbounded)")
	cmd.Flags().Bool("compress", false, "Compress the incremental cache on disk")
	cmd.Flags().Bool("stats-only", false, "Print summary statistics instead of matches")
	cmd.Flags().Bool("fail-on-match", false, "Exit nonzero when matches are found")
	cmd.Flags().Int("max-depth", 0, "Maximum directory depth (0 = unlimited)")
	cmd.Flags().Bool("follow-symlinks", false, "Follow symbolic links")

	for _, name := range []string{
		"extensions", "ignore", "regex", "boundary", "hyphens", "encoding",
		"before", "after", "incremental", "cache-path", "cache-strategy",
		"max-cache-size", "compress", "stats-only", "fail-on-match",
		"max-depth", "follow-symlinks",
	} {
		viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	patternTexts, root := args[:len(args)-1], args[len(args)-1]

	boundary, err := types.ParseBoundaryMode(viper.GetString("boundary"))
	if err != nil {
		return usageErr(err)
	}
	hyphens, err := types.ParseHyphenMode(viper.GetString("hyphens"))
	if err != nil {
		return usageErr(err)
	}
	encoding, err := types.ParseEncodingMode(viper.GetString("encoding"))
	if err != nil {
		return usageErr(err)
	}

	isRegex := viper.GetBool("regex")
	patterns := make([]types.PatternDefinition, len(patternTexts))
	for i, text := range patternTexts {
		patterns[i] = types.PatternDefinition{
			Text:     text,
			IsRegex:  isRegex,
			Boundary: boundary,
			Hyphens:  hyphens,
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := scout.Search(ctx, scout.SearchOptions{
		Patterns:       patterns,
		Root:           root,
		IgnorePatterns: viper.GetStringSlice("ignore"),
		Extensions:     viper.GetStringSlice("extensions"),
		MaxDepth:       viper.GetInt("max-depth"),
		FollowSymlinks: viper.GetBool("follow-symlinks"),
		Threads:        viper.GetInt("threads"),
		ContextBefore:  viper.GetInt("before"),
		ContextAfter:   viper.GetInt("after"),
		Encoding:       encoding,
		Incremental:    viper.GetBool("incremental"),
		CachePath:      viper.GetString("cache-path"),
		CacheStrategy:  viper.GetString("cache-strategy"),
		MaxCacheSize:   viper.GetInt64("max-cache-size"),
		Compress:       viper.GetBool("compress"),
		Logger:         logging.Default(),
	})
	if err != nil {
		var perr *types.InvalidPatternError
		if errors.Is(err, types.ErrNoPatterns) || errors.As(err, &perr) {
			return usageErr(err)
		}
		return failureErr(err)
	}

	if viper.GetBool("stats-only") {
		printStats(result)
	} else {
		printMatches(result)
	}

	for _, ferr := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", ferr)
	}

	if viper.GetBool("fail-on-match") && result.TotalMatches > 0 {
		return silentExit(exitFailure)
	}
	return nil
}

func printMatches(result *types.SearchResult) {
	for _, fr := range result.Files {
		for _, m := range fr.Matches {
			for _, c := range m.ContextBefore {
				fmt.Printf("%s-%d- %s\n", fr.Path, c.LineNumber, c.Text)
			}
			fmt.Printf("%s:%d:%d: %s\n", fr.Path, m.LineNumber, m.Start+1, m.LineText)
			for _, c := range m.ContextAfter {
				fmt.Printf("%s-%d- %s\n", fr.Path, c.LineNumber, c.Text)
			}
		}
	}
	fmt.Printf("%d matches in %d of %d files\n",
		result.TotalMatches, result.TotalFilesMatched, result.TotalFilesScanned)
}

func printStats(result *types.SearchResult) {
	s := result.Stats
	fmt.Printf("files scanned:   %d\n", result.TotalFilesScanned)
	fmt.Printf("files matched:   %d\n", result.TotalFilesMatched)
	fmt.Printf("total matches:   %d\n", result.TotalMatches)
	fmt.Printf("peak memory:     %s\n", humanize.IBytes(s.PeakAllocated))
	fmt.Printf("mmap bytes:      %s\n", humanize.IBytes(s.MmapAllocated))
	fmt.Printf("pattern cache:   %d hits, %d misses\n", s.CacheHits, s.CacheMisses)
	fmt.Printf("file strategies: %d small, %d buffered, %d mmap\n",
		s.SmallFiles, s.BufferedFiles, s.MmapFiles)
}
