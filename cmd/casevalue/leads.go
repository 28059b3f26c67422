package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casevalue/internal/catalog"
	"casevalue/internal/config"
	"casevalue/internal/exporter"
	"casevalue/internal/store"
)

func leadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Work with captured case-evaluation leads",
	}
	cmd.AddCommand(leadsExportCmd(a))
	return cmd
}

func leadsExportCmd(a *app) *cobra.Command {
	var (
		out     string
		formID  string
		since   string
		perForm bool
		funnel  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export leads to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sinceTime time.Time
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q, expected YYYY-MM-DD", since)
				}
				sinceTime = t
			}

			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			dataDir, err := config.EnsureDataDir(a.cfg)
			if err != nil {
				return err
			}
			st, err := store.New(config.DatabasePath(dataDir))
			if err != nil {
				return err
			}
			defer st.Close()

			if out == "" {
				out = filepath.Join(dataDir, "exports", exporter.FileName(time.Now()))
			}

			f, err := exporter.NewExporter(st, cat).ExportLeads(cmd.Context(), exporter.ExportOptions{
				FormID:        formID,
				Since:         sinceTime,
				PerFormSheets: perForm,
				IncludeFunnel: funnel,
			}, func(e exporter.ProgressEvent) {
				a.logger.Debug("export progress", zap.Int("percent", e.Percent), zap.String("stage", e.Stage))
			})
			if err != nil {
				return err
			}
			defer f.Close()

			if err := f.SaveAs(out); err != nil {
				return fmt.Errorf("failed to save %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件（默认写入数据目录 exports/）")
	cmd.Flags().StringVar(&formID, "form", "", "只导出指定评估表单")
	cmd.Flags().StringVar(&since, "since", "", "起始日期 YYYY-MM-DD")
	cmd.Flags().BoolVar(&perForm, "per-form", false, "每个表单单独一页")
	cmd.Flags().BoolVar(&funnel, "funnel", false, "附加计算器漏斗统计页")
	return cmd
}
