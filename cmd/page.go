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
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/xiaoqidun/inkpdf"
)

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "page structure commands",
}

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "structural page edits",
}

func init() {
	structureCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	structureCmd.AddCommand(showStructureCmd())
	structureCmd.AddCommand(deleteDocumentCmd())

	pageCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	pageCmd.AddCommand(insertPageCmd())
	pageCmd.AddCommand(deletePageCmd())
	pageCmd.AddCommand(clearPageCmd())
}

func showStructureCmd() *cobra.Command {
	var source string
	command := &cobra.Command{
		Use:   "show",
		Short: "show the page plan and ink of a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := documentID(cmd)
			if err != nil {
				return err
			}
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()
			pageCount := 0
			if source != "" {
				src, err := loadSource(ctx, source)
				if err != nil {
					return err
				}
				pageCount = src.PageCount
			}
			snap, err := e.store.Snapshot(ctx, id, pageCount)
			if err != nil {
				return err
			}
			if _, ok := snap.Plan.(inkpdf.Unedited); ok {
				color.Yellow("document %s has no saved page structure\n", id)
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Position", "Kind", "Original", "Strokes"})
			for k, entry := range snap.Plan.Entries() {
				original := "-"
				if idx, ok := entry.Source(); ok {
					original = fmt.Sprint(idx)
				}
				table.Append([]string{fmt.Sprint(k), entry.Kind.String(), original, fmt.Sprint(len(snap.Drawings[k].Strokes))})
			}
			table.Render()
			return nil
		},
	}
	bindDocumentFlags(command)
	command.Flags().StringVarP(&source, "source", "s", "", "source document, used for unedited documents")
	return command
}

func deleteDocumentCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "delete",
		Short: "delete the page structure and all ink of a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := documentID(cmd)
			if err != nil {
				return err
			}
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.store.DeleteDocument(cmd.Context(), id); err != nil {
				return err
			}
			color.Green("document %s deleted\n", id)
			return nil
		},
	}
	bindDocumentFlags(command)
	return command
}

// withSession 打开会话执行编辑后关闭
func withSession(cmd *cobra.Command, source string, fn func(ctx context.Context, s *inkpdf.CanvasSession) error) error {
	id, err := documentID(cmd)
	if err != nil {
		return err
	}
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()
	src, err := loadSource(ctx, source)
	if err != nil {
		return err
	}
	s, err := inkpdf.OpenSession(ctx, e.store, e.renderer, src, id)
	if err != nil {
		return err
	}
	if err := fn(ctx, s); err != nil {
		_ = s.Close(ctx)
		return err
	}
	return s.Close(ctx)
}

func insertPageCmd() *cobra.Command {
	var source string
	var after int
	var atEnd bool
	var required = []string{"source"}
	command := &cobra.Command{
		Use:   "insert",
		Short: "insert a blank page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}
			return withSession(cmd, source, func(ctx context.Context, s *inkpdf.CanvasSession) error {
				var pos int
				var err error
				if atEnd || !cmd.Flags().Changed("after") {
					pos, err = s.InsertAtEnd(ctx)
				} else {
					pos, err = s.InsertAfter(ctx, after)
				}
				if err != nil {
					return err
				}
				color.Green("blank page inserted at %d\n", pos)
				return nil
			})
		},
	}
	bindDocumentFlags(command)
	command.Flags().StringVarP(&source, "source", "s", "", "source document")
	command.Flags().IntVar(&after, "after", 0, "insert after this position")
	command.Flags().BoolVar(&atEnd, "end", false, "insert at the end")
	return command
}

func deletePageCmd() *cobra.Command {
	var source string
	var page int
	var required = []string{"source", "page"}
	command := &cobra.Command{
		Use:   "delete",
		Short: "delete a page and its ink",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}
			return withSession(cmd, source, func(ctx context.Context, s *inkpdf.CanvasSession) error {
				if err := s.DeleteCurrent(ctx, page); err != nil {
					return err
				}
				color.Green("page %d deleted\n", page)
				return nil
			})
		},
	}
	bindDocumentFlags(command)
	command.Flags().StringVarP(&source, "source", "s", "", "source document")
	command.Flags().IntVarP(&page, "page", "p", 0, "position of the page")
	return command
}

func clearPageCmd() *cobra.Command {
	var source string
	var page int
	var required = []string{"source", "page"}
	command := &cobra.Command{
		Use:   "clear",
		Short: "clear the ink of a page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}
			return withSession(cmd, source, func(ctx context.Context, s *inkpdf.CanvasSession) error {
				if err := s.ClearCurrent(ctx, page); err != nil {
					return err
				}
				color.Green("page %d cleared\n", page)
				return nil
			})
		},
	}
	bindDocumentFlags(command)
	command.Flags().StringVarP(&source, "source", "s", "", "source document")
	command.Flags().IntVarP(&page, "page", "p", 0, "position of the page")
	return command
}
