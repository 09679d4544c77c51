package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/packkeeper/internal/core/auth"
	"github.com/solatis/packkeeper/internal/core/config"
	"github.com/solatis/packkeeper/internal/core/rulestore"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key for an account (created if missing)",
	Long: `Create issues a new API key signed with the newest configured HMAC secret.
The key is printed once and cannot be recovered; only its HMAC is stored.`,
	RunE: runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke API_KEY_ID",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	apikeyCreateCmd.Flags().String("account", "", "account name")
	apikeyCreateCmd.Flags().String("name", "", "key description")
}

func newAuthenticator(cmd *cobra.Command) (*auth.Authenticator, *rulestore.Store, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil, nil, fmt.Errorf("no HMAC secrets configured (set PK_HMAC_SECRET environment variable)")
	}
	database, queries, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() { database.Close() }
	return auth.NewAuthenticator(secrets, queries), rulestore.New(queries), closeFn, nil
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountName, _ := cmd.Flags().GetString("account")
	if accountName == "" {
		return fmt.Errorf("--account required")
	}
	keyName, _ := cmd.Flags().GetString("name")

	authenticator, store, closeFn, err := newAuthenticator(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	acct, err := store.EnsureAccount(ctx, accountName)
	if err != nil {
		return err
	}
	issued, err := authenticator.IssueAPIKey(ctx, acct.ID, keyName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "account:    %s (%s)\n", acct.Name, acct.ID)
	fmt.Fprintf(out, "api_key_id: %s\n", issued.ID)
	fmt.Fprintf(out, "api_key:    %s\n", issued.Key)
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	authenticator, _, closeFn, err := newAuthenticator(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := authenticator.RevokeAPIKey(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}
