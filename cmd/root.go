// Copyright 2025-2026 肖其顿 (XIAO QI DUN)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd inkpdf 命令行工具
package cmd

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "inkpdf",
	Short: "handwriting annotation store and pdf exporter",
	Example: `inkpdf structure show --doc <uuid> --source lecture.pdf
inkpdf page insert --doc <uuid> --source lecture.pdf --after 2
inkpdf page delete --doc <uuid> --source lecture.pdf --page 3
inkpdf export --doc <uuid> --source lecture.pdf --out annotated.pdf
inkpdf assignment --parent <uuid> --out assignment.pdf part1.pdf part2.png
inkpdf sweep --watch --schedule "@every 1h"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("backend", "file", "storage backend: memory, file, sqlite, postgres, redis")
	flags.String("data-dir", ".inkpdf", "data directory of the file backend")
	flags.String("dsn", "", "database dsn of the sqlite and postgres backends")
	flags.String("redis-addr", "localhost:6379", "redis address")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.Float64("scale", 2, "canvas pixels per pdf point")
	flags.String("compression", "lz4", "ink compression: none, gzip, lz4, brotli")
	flags.String("pdftoppm", "pdftoppm", "path of the pdftoppm binary")
	flags.String("dark-tone", "#1C1C1E", "dark mode background color")
	flags.String("log-level", "info", "log level")
	_ = viper.BindPFlags(flags)

	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(assignmentCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(sweepCmd())

	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
