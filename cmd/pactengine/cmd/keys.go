package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/core/auth"
	"github.com/pact-foundation/pactengine/internal/core/db"
)

var errNoAuthSecret = errors.New("no auth secret configured (set PACT_SERVER_AUTH_SECRET)")

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for the gRPC service",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Issue an API key; the key is printed once and never stored",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysCreate,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <name>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	Args:  cobra.NoArgs,
	RunE:  runKeysList,
}

func init() {
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd, keysListCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.AuthSecret == "" {
		return errNoAuthSecret
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	key, hash, err := auth.GenerateAPIKey([]byte(cfg.Server.AuthSecret))
	if err != nil {
		return err
	}
	if _, err := store.CreateAPIKey(cmd.Context(), args[0], hash); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()
	return store.RevokeAPIKey(cmd.Context(), args[0])
}

func runKeysList(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := store.ListAPIKeys(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREATED\tLAST USED\tREVOKED")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.Name,
			stamp(k.CreatedAt), stamp(k.LastUsedAt), stamp(k.RevokedAt))
	}
	return w.Flush()
}

func stamp(t db.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}
