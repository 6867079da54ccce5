package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/types"
)

var (
	contractRules      string
	contractGenerators string
	contractSpec       string
	contractLimit      int
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Manage stored contracts",
}

var contractsPutCmd = &cobra.Command{
	Use:   "put <name>",
	Short: "Store the matching rules and generators of a contract",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractsPut,
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored contracts",
	Args:  cobra.NoArgs,
	RunE:  runContractsList,
}

var contractsDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a contract and its verification history",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractsDelete,
}

var contractsHistoryCmd = &cobra.Command{
	Use:   "history <name|id>",
	Short: "Show recent verification results of a contract",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractsHistory,
}

func init() {
	contractsPutCmd.Flags().StringVar(&contractRules, "rules", "", "matching rules JSON")
	contractsPutCmd.Flags().StringVar(&contractGenerators, "generators", "", "generators JSON")
	contractsPutCmd.Flags().StringVar(&contractSpec, "spec", "v3", "pact specification version the documents are stored as")
	contractsPutCmd.MarkFlagsOneRequired("rules", "generators")
	contractsHistoryCmd.Flags().IntVar(&contractLimit, "limit", 20, "number of results to show")
	contractsCmd.AddCommand(contractsPutCmd, contractsListCmd, contractsDeleteCmd, contractsHistoryCmd)
	rootCmd.AddCommand(contractsCmd)
}

func runContractsPut(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	spec, err := types.ParseSpecVersion(contractSpec)
	if err != nil {
		return err
	}

	rules := matchingrules.NewMatchingRules()
	if contractRules != "" {
		doc, err := readJSONObject(contractRules, cmd.InOrStdin())
		if err != nil {
			return err
		}
		rules = matchingrules.FromJSON(doc)
	}
	gens := generators.New()
	if contractGenerators != "" {
		doc, err := readJSONObject(contractGenerators, cmd.InOrStdin())
		if err != nil {
			return err
		}
		gens = generators.FromJSON(doc)
	}

	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := store.PutContract(cmd.Context(), args[0], spec, rules, gens)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runContractsList(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	contracts, err := store.ListContracts(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSPEC\tUPDATED")
	for _, c := range contracts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.SpecVersion, stamp(c.UpdatedAt))
	}
	return w.Flush()
}

func runContractsDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := resolveContract(cmd, store, args[0])
	if err != nil {
		return err
	}
	return store.DeleteContract(cmd.Context(), id)
}

func runContractsHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := resolveContract(cmd, store, args[0])
	if err != nil {
		return err
	}
	results, err := store.ListVerifications(cmd.Context(), id, contractLimit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDED\tPLAN\tOK\tERRORS")
	for _, v := range results {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", stamp(v.RecordedAt), v.PlanName, v.OK, len(v.ErrorList()))
	}
	return w.Flush()
}
