package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/plan"
	"github.com/pact-foundation/pactengine/internal/planner"
)

var (
	planPart   string
	planFormat string
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build and inspect matching plans",
}

var planBuildCmd = &cobra.Command{
	Use:   "build <interaction.json>",
	Short: "Build the request or response plan of an expected interaction",
	Example: `  pactengine plan build --part response --format yaml -o plans/get-items.yaml interaction.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPlanBuild,
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan>",
	Short: "Print a plan document as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := plan.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), node.PrettyForm())
		return nil
	},
}

func init() {
	planBuildCmd.Flags().StringVar(&planPart, "part", "request", "which part to plan (request, response)")
	planBuildCmd.Flags().StringVar(&planFormat, "format", "yaml", "document format (json, yaml)")
	planBuildCmd.Flags().StringVarP(&planOutput, "output", "o", "", "write to a file instead of standard output")
	planCmd.AddCommand(planBuildCmd, planShowCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlanBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, err := plan.ParseFormat(planFormat)
	if err != nil {
		return err
	}
	data, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	expected, err := interaction.ParseInteraction(data)
	if err != nil {
		return err
	}

	p := planner.New().WithLogger(logger)
	var node *engine.ExecutionPlanNode
	switch planPart {
	case "request":
		if expected.Request == nil {
			return fmt.Errorf("%s has no request", args[0])
		}
		ctx := engine.NewPlanMatchingContext(cfg.Matching.Engine(), expected.Request.MatchingRules)
		node = p.BuildRequestPlan(expected.Request, ctx)
	case "response":
		if expected.Response == nil {
			return fmt.Errorf("%s has no response", args[0])
		}
		ctx := engine.NewPlanMatchingContext(cfg.Matching.Engine(), expected.Response.MatchingRules)
		node = p.BuildResponsePlan(expected.Response, ctx)
	default:
		return fmt.Errorf("invalid part %q (expected request or response)", planPart)
	}

	doc, err := plan.Encode(node, format)
	if err != nil {
		return err
	}
	if planOutput != "" {
		return os.WriteFile(planOutput, doc, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(doc)
	return err
}
