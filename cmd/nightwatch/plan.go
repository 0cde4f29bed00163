package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/plan"
)

func newPlanCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect and prepare observation plans",
	}
	cmd.AddCommand(newPlanCheckCmd(root), newPlanNarrowCmd(root))
	return cmd
}

func newPlanCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [plan-file]",
		Short: "Parse a plan and list its entries",
		Long: `Parse a plan file (default observatory.plan_file) in the site time zone
and list its entries. Entries whose window has closed are marked past; the
executor skips them. Entries starting closer than schedule.min_gap to the
previous one are marked tight.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Observatory.PlanFile
			if len(args) == 1 {
				path = args[0]
			}

			p, err := plan.Load(path, cfg.Location())
			if err != nil {
				return err
			}
			if p.IsEmpty() {
				return fmt.Errorf("%w: %s", daycycle.ErrEmptyPlan, path)
			}
			return writePlanTable(cmd, p, time.Now(), cfg.Schedule.MinGap)
		},
	}
}

func writePlanTable(cmd *cobra.Command, p *plan.Plan, now time.Time, minGap time.Duration) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tBEGIN\tEND\tDURATION\tNOTE")
	for i, e := range p.Entries {
		var note string
		switch {
		case !e.EndLocal.After(now):
			note = "past"
		case i > 0 && e.BeginLocal.Sub(p.Entries[i-1].EndLocal) < minGap:
			note = "tight"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, e.Name,
			e.BeginLocal.Format(plan.TimeLayout), e.EndLocal.Format(plan.TimeLayout), e.Duration(), note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d entries\n", p.Len())
	return nil
}

func newPlanNarrowCmd(root *rootOptions) *cobra.Command {
	var (
		out       string
		minGap    time.Duration
		halfWidth time.Duration
	)
	cmd := &cobra.Command{
		Use:   "narrow <plan-file>",
		Short: "Apply the window policy to a plan",
		Long: `Re-apply the planning-stage policy to a plan: drop windows that start
within min-gap of an earlier kept window, narrow each kept window to
half-width either side of its midpoint, and write the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("min-gap") {
				minGap = cfg.Schedule.MinGap
			}
			if !cmd.Flags().Changed("half-width") {
				halfWidth = cfg.Schedule.WindowHalfWidth
			}
			if out == "" {
				out = args[0]
			}

			loc := cfg.Location()
			in, err := plan.Load(args[0], loc)
			if err != nil {
				return err
			}
			narrowed := plan.Build(plan.ToCandidates(in), minGap, halfWidth, loc)
			if err := plan.Save(out, narrowed); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d entries, wrote %s\n", narrowed.Len(), in.Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: rewrite the input)")
	cmd.Flags().DurationVar(&minGap, "min-gap", 0, "minimum spacing between kept windows (default schedule.min_gap)")
	cmd.Flags().DurationVar(&halfWidth, "half-width", 0, "half-width of narrowed windows, 0 keeps them whole (default schedule.window_half_width)")
	return cmd
}
