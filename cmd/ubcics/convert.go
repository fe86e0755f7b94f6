package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minjunminji/ubcxlsxtoics/internal/config"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Converts an export (.xlsx or .csv) into an .ics file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		skipBreaks, _ := cmd.Flags().GetBool("skip-breaks")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		conv, err := newConverter(cmd.Context(), skipBreaks)
		if err != nil {
			return err
		}
		doc, st, err := conv.File(filepath.Base(args[0]), data)
		if err != nil {
			return err
		}

		if out == "-" {
			_, err = cmd.OutOrStdout().Write(doc)
			return err
		}
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".ics"
		}
		if err := config.WriteFileAtomic(out, doc, 0o644); err != nil {
			return err
		}
		appLog.Info("calendar written",
			"output", out,
			"sections", st.Sections,
			"events", st.Events,
			"skipped_lines", st.SkippedLines,
		)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Lists the class meetings an export would produce",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skipBreaks, _ := cmd.Flags().GetBool("skip-breaks")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		conv, err := newConverter(cmd.Context(), skipBreaks)
		if err != nil {
			return err
		}
		doc, _, err := conv.File(filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		occs, err := conv.Preview(doc)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, o := range occs {
			fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\n",
				o.Start.Format("Mon 2006-01-02"),
				o.Start.Format("15:04"),
				o.End.Format("15:04"),
				o.Summary,
				o.Location,
			)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(previewCmd)

	convertCmd.Flags().StringP("output", "o", "", "Output path, - for stdout (default: input name with .ics)")
	convertCmd.Flags().Bool("skip-breaks", false, "Also exclude Winter Break and Reading Week")
	previewCmd.Flags().Bool("skip-breaks", false, "Also exclude Winter Break and Reading Week")
}
