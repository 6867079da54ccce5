package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/types"
)

var (
	convertSpec       string
	convertGenerators bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with matching rule and generator documents",
}

var rulesConvertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Rewrite a matching rules document in the form of another pact version",
	Long: `Reads matching rules in any supported pact form and writes them in the
form of --spec. With --generators the document is a generators document
instead. The input defaults to standard input.`,
	Example: `  pactengine rules convert --spec v2 rules.json
  cat generators.json | pactengine rules convert --generators --spec v4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesConvert,
}

func init() {
	rulesConvertCmd.Flags().StringVar(&convertSpec, "spec", "v3", "target pact specification version")
	rulesConvertCmd.Flags().BoolVar(&convertGenerators, "generators", false, "convert a generators document")
	rulesCmd.AddCommand(rulesConvertCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesConvert(cmd *cobra.Command, args []string) error {
	spec, err := types.ParseSpecVersion(convertSpec)
	if err != nil {
		return err
	}
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	doc, err := readJSONObject(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var out map[string]any
	if convertGenerators {
		if out, err = generators.FromJSON(doc).ToMap(spec); err != nil {
			return err
		}
	} else {
		out = matchingrules.FromJSON(doc).ToMap(spec)
	}
	fmt.Fprintln(cmd.OutOrStdout(), jsondoc.Pretty(out))
	return nil
}
