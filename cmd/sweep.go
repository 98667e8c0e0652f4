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

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xiaoqidun/inkpdf"
)

func sweepCmd() *cobra.Command {
	var watch bool
	var schedule string
	command := &cobra.Command{
		Use:   "sweep",
		Short: "remove ink stored beyond the page structure of each document",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			sweeper := inkpdf.NewOrphanSweeper(e.store)
			if !watch {
				report, err := sweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				color.Green("swept %d documents, removed %d drawings\n", report.Documents, report.Removed)
				return nil
			}
			if err := sweeper.Start(schedule); err != nil {
				return err
			}
			logrus.Infof("sweeping on schedule %q", schedule)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			sweeper.Stop()
			return nil
		},
	}
	command.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and sweep on a schedule")
	command.Flags().StringVar(&schedule, "schedule", "@every 1h", "cron schedule used with --watch")
	return command
}
