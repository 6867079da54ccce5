package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/core/api"
	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

var (
	generateGenerators    string
	generateBody          string
	generateContract      string
	generateSeed          int64
	generateProviderState string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Apply body generators to an example body",
	Example: `  pactengine generate --generators generators.json --body body.json
  pactengine generate --contract orders --body body.json --seed 42`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateGenerators, "generators", "", "generators JSON in the pact file form")
	generateCmd.Flags().StringVar(&generateBody, "body", "", "example body JSON (- for stdin)")
	generateCmd.Flags().StringVar(&generateContract, "contract", "", "stored contract name or ID supplying the generators")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "random seed (0 seeds from the clock)")
	generateCmd.Flags().StringVar(&generateProviderState, "provider-state", "", "provider state parameters JSON")
	generateCmd.MarkFlagsMutuallyExclusive("generators", "contract")
	generateCmd.MarkFlagsOneRequired("generators", "contract")
	_ = generateCmd.MarkFlagRequired("body")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := &api.GenerateRequest{Seed: generateSeed}
	if req.Body, err = readJSON(generateBody, cmd.InOrStdin()); err != nil {
		return err
	}
	if generateProviderState != "" {
		if req.ProviderState, err = readJSONObject(generateProviderState, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	opts := []api.Option{api.WithLogger(logger)}
	if generateContract != "" {
		store, closeStore, err := openStore(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer closeStore()
		if req.ContractID, err = resolveContract(cmd, store, generateContract); err != nil {
			return err
		}
		opts = append(opts, api.WithStore(store))
	} else {
		doc, err := readJSONObject(generateGenerators, cmd.InOrStdin())
		if err != nil {
			return err
		}
		req.Generators = generators.FromJSON(doc)
	}

	body, err := api.NewContractService(cfg.Matching.Engine(), opts...).Generate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), jsondoc.Pretty(body))
	return nil
}
