package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"casevalue/internal/catalog"
	"casevalue/internal/estimator"
	"casevalue/internal/model"
)

func calculatorsCmd(a *app) *cobra.Command {
	var (
		category string
		query    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "calculators",
		Short: "List the compensation calculators",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			items := cat.Calculators(catalog.Filter{Category: model.Category(category), Query: query})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTEPS")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", item.ID, item.Name, item.Category, item.Steps)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "按分类筛选")
	cmd.Flags().StringVarP(&query, "query", "q", "", "按名称或描述搜索")
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出 JSON")
	return cmd
}

func estimateCmd(a *app) *cobra.Command {
	var (
		answers []string
		strict  bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "estimate <calculator-id>",
		Short: "Estimate a settlement range from answers given as key=value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			calc, ok := cat.Calculator(args[0])
			if !ok {
				return fmt.Errorf("unknown calculator %q", args[0])
			}

			parsed, err := parseAnswers(answers)
			if err != nil {
				return err
			}
			if strict {
				if keys := estimator.Unrecognized(calc, parsed); len(keys) > 0 {
					return fmt.Errorf("unrecognized answers: %s", strings.Join(keys, ", "))
				}
			}

			est := estimator.Estimate(calc, parsed)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), est)
			}
			printEstimate(cmd.OutOrStdout(), calc, est)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "答案，格式 key=value，可重复")
	cmd.Flags().BoolVar(&strict, "strict", false, "存在未识别或缺失的答案时报错")
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出 JSON")
	return cmd
}

func parseAnswers(pairs []string) (model.Answers, error) {
	answers := make(model.Answers, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid answer %q, expected key=value", p)
		}
		answers[key] = value
	}
	return answers, nil
}

func printEstimate(w io.Writer, calc *model.Calculator, est *model.Estimate) {
	fmt.Fprintf(w, "%s\n", calc.Name)
	fmt.Fprintf(w, "Estimated range: %s - %s\n", formatUSD(est.Min), formatUSD(est.Max))
	fmt.Fprintf(w, "Combined multiplier: %.4g\n", est.Multiplier)
	for _, item := range est.Economic {
		fmt.Fprintf(w, "  %s: %s\n", item.Label, formatUSD(int64(item.Amount)))
	}
	if len(est.Unrecognized) > 0 {
		keys := append([]string(nil), est.Unrecognized...)
		sort.Strings(keys)
		fmt.Fprintf(w, "Treated as neutral: %s\n", strings.Join(keys, ", "))
	}
	if calc.Disclaimer != "" {
		fmt.Fprintf(w, "\n%s\n", calc.Disclaimer)
	}
}

// formatUSD 1234567 -> $1,234,567
func formatUSD(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	s := fmt.Sprintf("%d", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
