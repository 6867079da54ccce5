package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/core/api"
	"github.com/pact-foundation/pactengine/internal/core/db"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/plan"
	"github.com/pact-foundation/pactengine/internal/types"
)

var errVerificationFailed = errors.New("verification failed")

var (
	verifyPlan        string
	verifyInteraction string
	verifyRequest     string
	verifyResponse    string
	verifyContract    string
	verifyOutput      string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Match an actual request or response against a plan",
	Long: `Executes a matching plan against an actual HTTP request or response.

The plan is either a plan document (--plan) or built from an expected
interaction (--interaction). The command exits non-zero on a mismatch.`,
	Example: `  pactengine verify --plan get-items.yaml --request actual.json
  pactengine verify --interaction interaction.json --response actual.json --output tree`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPlan, "plan", "", "plan document (.json, .yaml)")
	verifyCmd.Flags().StringVar(&verifyInteraction, "interaction", "", "expected interaction JSON")
	verifyCmd.Flags().StringVar(&verifyRequest, "request", "", "actual request JSON (- for stdin)")
	verifyCmd.Flags().StringVar(&verifyResponse, "response", "", "actual response JSON (- for stdin)")
	verifyCmd.Flags().StringVar(&verifyContract, "contract", "", "stored contract name or ID supplying the matching rules")
	verifyCmd.Flags().StringVar(&verifyOutput, "output", "summary", "output format (summary, tree, errors)")
	verifyCmd.MarkFlagsMutuallyExclusive("plan", "interaction")
	verifyCmd.MarkFlagsOneRequired("plan", "interaction")
	verifyCmd.MarkFlagsOneRequired("request", "response")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := &api.VerifyRequest{}
	if verifyPlan != "" {
		if req.Plan, err = plan.LoadFile(verifyPlan); err != nil {
			return err
		}
		req.PlanName = plan.PlanName(verifyPlan)
	} else {
		data, err := readInput(verifyInteraction, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if req.Expected, err = interaction.ParseInteraction(data); err != nil {
			return err
		}
	}
	if verifyRequest != "" {
		data, err := readInput(verifyRequest, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if req.Request, err = interaction.ParseRequest(data); err != nil {
			return err
		}
	}
	if verifyResponse != "" {
		data, err := readInput(verifyResponse, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if req.Response, err = interaction.ParseResponse(data); err != nil {
			return err
		}
	}

	opts := []api.Option{api.WithLogger(logger)}
	if verifyContract != "" {
		store, closeStore, err := openStore(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer closeStore()
		if req.ContractID, err = resolveContract(cmd, store, verifyContract); err != nil {
			return err
		}
		opts = append(opts, api.WithStore(store))
	}

	service := api.NewContractService(cfg.Matching.Engine(), opts...)
	result, err := service.Verify(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch verifyOutput {
	case "tree":
		fmt.Fprintln(out, result.PrettyForm())
	case "errors":
		for _, e := range result.Errors {
			fmt.Fprintln(out, e)
		}
	default:
		fmt.Fprintln(out, result.Summary(cfg.Matching.ColouredOutput))
	}

	if !result.OK {
		return errVerificationFailed
	}
	return nil
}

// resolveContract accepts a contract ID or a contract name.
func resolveContract(cmd *cobra.Command, store *db.ContractStore, ref string) (types.ContractID, error) {
	if id, err := types.ParseContractID(ref); err == nil {
		return id, nil
	}
	c, err := store.GetContractByName(cmd.Context(), ref)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}
