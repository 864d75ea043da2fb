// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command goscout is a concurrent code-search and in-place replace tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

// Exit codes: 0 success, 1 failure (or --fail-on-match with matches),
// 2 invalid arguments.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries an explicit process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func usageErr(err error) error     { return &exitError{code: exitUsage, err: err} }
func failureErr(err error) error   { return &exitError{code: exitFailure, err: err} }
func silentExit(code int) error    { return &exitError{code: code} }

func main() {
	rootCmd := &cobra.Command{
		Use:           "goscout",
		Short:         "Concurrent code search and replace",
		Long:          "goscout searches large source trees for patterns and rewrites occurrences atomically, with preview, backup, and undo.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags.
	rootCmd.PersistentFlags().String("config", "", "Explicit config file path")
	// -1 means "not set"; an explicit 0 is rejected by validation.
	rootCmd.PersistentFlags().IntP("threads", "j", -1, "Worker thread count (default: number of CPUs)")
	rootCmd.PersistentFlags().String("undo-dir", ".goscout/undo", "Directory for undo records and backups")

	viper.BindPFlag("threads", rootCmd.PersistentFlags().Lookup("threads"))
	viper.BindPFlag("undo-dir", rootCmd.PersistentFlags().Lookup("undo-dir"))

	// Env vars: GOSCOUT_THREADS, GOSCOUT_UNDO_DIR, etc.
	viper.SetEnvPrefix("GOSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newReplaceCmd())
	rootCmd.AddCommand(newListUndoCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newVersionCmd())

	cobra.OnInitialize(func() {
		loadConfigFile(rootCmd)
	})

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsage)
	}
}

// loadConfigFile reads configuration in precedence order: the explicit
// --config path, a local .goscout.yaml, then the user config directory.
// Unknown fields in the file are an error.
func loadConfigFile(rootCmd *cobra.Command) {
	// A separate viper instance holds only the file's keys, so unknown
	// fields can be rejected without tripping over flag-bound settings.
	v := viper.New()
	if explicit, _ := rootCmd.PersistentFlags().GetString("config"); explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: config %s: %v\n", explicit, err)
			os.Exit(exitUsage)
		}
	} else {
		v.SetConfigName(".goscout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if userDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(userDir, "goscout"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
				os.Exit(exitUsage)
			}
			return // config file is optional
		}
	}

	var probe fileConfig
	if err := v.UnmarshalExact(&probe); err != nil {
		fmt.Fprintf(os.Stderr, "Error: config %s: %v\n", v.ConfigFileUsed(), err)
		os.Exit(exitUsage)
	}
	if err := viper.MergeConfigMap(v.AllSettings()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: config %s: %v\n", v.ConfigFileUsed(), err)
		os.Exit(exitUsage)
	}
}

// fileConfig enumerates every recognized config-file field; anything else
// fails UnmarshalExact.
type fileConfig struct {
	Threads       int      `mapstructure:"threads"`
	UndoDir       string   `mapstructure:"undo-dir"`
	Extensions    []string `mapstructure:"extensions"`
	Ignore        []string `mapstructure:"ignore"`
	Regex         bool     `mapstructure:"regex"`
	Boundary      string   `mapstructure:"boundary"`
	Hyphens       string   `mapstructure:"hyphens"`
	Encoding      string   `mapstructure:"encoding"`
	Before        int      `mapstructure:"before"`
	After         int      `mapstructure:"after"`
	Incremental   bool     `mapstructure:"incremental"`
	CachePath     string   `mapstructure:"cache-path"`
	CacheStrategy string   `mapstructure:"cache-strategy"`
	MaxCacheSize  int64    `mapstructure:"max-cache-size"`
	Compress      bool     `mapstructure:"compress"`
	StatsOnly     bool     `mapstructure:"stats-only"`
	FailOnMatch   bool     `mapstructure:"fail-on-match"`
	MaxDepth      int      `mapstructure:"max-depth"`
	Symlinks      bool     `mapstructure:"follow-symlinks"`
	Backup        bool     `mapstructure:"backup"`
	BackupDir     string   `mapstructure:"backup-dir"`
	Preserve      bool     `mapstructure:"preserve"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print goscout version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("goscout %s\n", version)
		},
	}
}

