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
	"image"
	"image/png"
	"io"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xiaoqidun/inkpdf"
)

func exportCmd() *cobra.Command {
	var source, out string
	var required = []string{"source", "out"}
	command := &cobra.Command{
		Use:   "export",
		Short: "export a document with its ink as pdf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}
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
			comp := inkpdf.NewCompositor(e.store, e.renderer)
			err = inkpdf.ExportFile(ctx, out, func(w io.Writer) error {
				return comp.ExportDocument(ctx, id, src, w)
			})
			if err != nil {
				return err
			}
			color.Green("exported %s\n", out)
			return nil
		},
	}
	bindDocumentFlags(command)
	command.Flags().StringVarP(&source, "source", "s", "", "source document")
	command.Flags().StringVarP(&out, "out", "o", "", "output pdf")
	return command
}

func assignmentCmd() *cobra.Command {
	var parent, out string
	var required = []string{"parent", "out"}
	command := &cobra.Command{
		Use:   "assignment [sources...]",
		Short: "export sub-documents of an assignment as one pdf",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}
			parentID, err := uuid.Parse(parent)
			if err != nil {
				return err
			}
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()
			subs := make([]inkpdf.SubDocument, len(args))
			for i, path := range args {
				subs[i].Ordinal = i
				src, err := loadSource(ctx, path)
				if err != nil {
					logrus.WithError(err).Warnf("sub-document %d unavailable", i)
					continue
				}
				subs[i].Source = src
			}
			comp := inkpdf.NewCompositor(e.store, e.renderer)
			err = inkpdf.ExportFile(ctx, out, func(w io.Writer) error {
				return comp.GenerateAssignmentPDF(ctx, parentID, subs, w)
			})
			if err != nil {
				return err
			}
			color.Green("exported %s\n", out)
			return nil
		},
	}
	command.Flags().StringVar(&parent, "parent", "", "assignment document id")
	command.Flags().StringVarP(&out, "out", "o", "", "output pdf")
	return command
}

func renderCmd() *cobra.Command {
	var source, out, mode string
	var page int
	var required = []string{"source", "out"}
	command := &cobra.Command{
		Use:   "render",
		Short: "render one page with its ink as png",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}
			id, err := documentID(cmd)
			if err != nil {
				return err
			}
			colorMode, err := inkpdf.ParseColorMode(mode)
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
			s, err := inkpdf.OpenSession(ctx, e.store, e.renderer, src, id, inkpdf.WithColorMode(colorMode))
			if err != nil {
				return err
			}
			defer s.Close(ctx)
			var img image.Image
			img, err = s.RenderPage(ctx, page)
			if err != nil {
				return err
			}
			if err := inkpdf.ExportFile(ctx, out, func(w io.Writer) error {
				return png.Encode(w, img)
			}); err != nil {
				return err
			}
			color.Green("rendered page %d to %s\n", page, out)
			return nil
		},
	}
	bindDocumentFlags(command)
	command.Flags().StringVarP(&source, "source", "s", "", "source document")
	command.Flags().StringVarP(&out, "out", "o", "", "output png")
	command.Flags().IntVarP(&page, "page", "p", 0, "position of the page")
	command.Flags().StringVar(&mode, "mode", "light", "color mode: light, dark")
	return command
}
