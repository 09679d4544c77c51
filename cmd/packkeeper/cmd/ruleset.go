package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/packkeeper/internal/core/rulestore"
	"github.com/solatis/packkeeper/internal/rules"
)

var rulesetCmd = &cobra.Command{
	Use:   "ruleset",
	Short: "Manage stored rule sets",
}

var rulesetPutCmd = &cobra.Command{
	Use:   "put NAME RULES_FILE",
	Short: "Store a rule set file as a new revision",
	Args:  cobra.ExactArgs(2),
	RunE:  runRuleSetPut,
}

var rulesetGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a stored rule set as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleSetGet,
}

var rulesetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest revision of every rule set",
	Args:  cobra.NoArgs,
	RunE:  runRuleSetList,
}

func init() {
	rootCmd.AddCommand(rulesetCmd)
	rulesetCmd.AddCommand(rulesetPutCmd, rulesetGetCmd, rulesetListCmd)
	rulesetCmd.PersistentFlags().String("account", "", "account name")
	rulesetGetCmd.Flags().Int("version", 0, "revision (0 = latest)")
}

func openRuleStore(cmd *cobra.Command) (*rulestore.Store, rulestore.Account, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, rulestore.Account{}, nil, err
	}
	database, queries, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return nil, rulestore.Account{}, nil, err
	}
	store := rulestore.New(queries)
	acct, err := accountByFlag(cmd.Context(), store, cmd)
	if err != nil {
		database.Close()
		return nil, rulestore.Account{}, nil, err
	}
	return store, acct, func() { database.Close() }, nil
}

func runRuleSetPut(cmd *cobra.Command, args []string) error {
	rs, err := readRuleSetFile(args[1])
	if err != nil {
		return err
	}

	store, acct, closeFn, err := openRuleStore(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	meta, err := store.PutRuleSet(cmd.Context(), acct.ID, args[0], rs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, issue := range rules.Validate(rs.Rules, nil) {
		fmt.Fprintln(out, issue.String())
	}
	fmt.Fprintf(out, "%s version %d (%s)\n", meta.Name, meta.Version, meta.Checksum[:12])
	return nil
}

func runRuleSetGet(cmd *cobra.Command, args []string) error {
	version, _ := cmd.Flags().GetInt("version")

	store, acct, closeFn, err := openRuleStore(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	stored, err := store.GetRuleSet(cmd.Context(), acct.ID, args[0], version)
	if err != nil {
		return err
	}
	data, err := rules.EncodeRuleSet(stored.RuleSet)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runRuleSetList(cmd *cobra.Command, args []string) error {
	store, acct, closeFn, err := openRuleStore(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	sets, err := store.ListRuleSets(cmd.Context(), acct.ID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tCHECKSUM\tCREATED")
	for _, m := range sets {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Name, m.Version, m.Checksum[:12], m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
