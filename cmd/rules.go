package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/frahmantamala/research-hours/internal/hours"
	hoursPostgres "github.com/frahmantamala/research-hours/internal/hours/postgres"
	"github.com/frahmantamala/research-hours/pkg/logger"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule table management",
	Long:  `Publish new rule table versions and inspect published ones. Published versions are never edited.`,
}

var rulesFile string

var publishRulesCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a rule table file as the new current version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openRuleStore()
		if err != nil {
			return err
		}
		defer closeDB()

		table, err := hours.LoadFile(rulesFile)
		if err != nil {
			return err
		}
		published, err := store.Publish(cmd.Context(), table, nil)
		if err != nil {
			return fmt.Errorf("publish rule table: %w", err)
		}

		fmt.Printf("published rule table %q as version %s\n", published.Name, published.Version)
		return nil
	},
}

var showRulesCmd = &cobra.Command{
	Use:   "show [version]",
	Short: "Print the current or a given rule table version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openRuleStore()
		if err != nil {
			return err
		}
		defer closeDB()

		var table *hours.RuleTable
		if len(args) == 1 {
			table, err = store.Get(cmd.Context(), args[0])
		} else {
			table, err = store.Current(cmd.Context())
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	},
}

var listRulesCmd = &cobra.Command{
	Use:   "list",
	Short: "List published rule table versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openRuleStore()
		if err != nil {
			return err
		}
		defer closeDB()

		infos, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s  %s  %s\n", info.Version, info.CreatedAt.Format("2006-01-02 15:04"), info.Name)
		}
		return nil
	},
}

func openRuleStore() (*hours.RuleStore, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store := hours.NewRuleStore(hoursPostgres.NewRuleTableRepository(gormDB), logger.LoggerWrapper())
	return store, func() { _ = db.Close() }, nil
}

func init() {
	publishRulesCmd.Flags().StringVarP(&rulesFile, "file", "f", "config/rules.yml", "rule table file (yaml or json)")

	rulesCmd.AddCommand(publishRulesCmd)
	rulesCmd.AddCommand(showRulesCmd)
	rulesCmd.AddCommand(listRulesCmd)
}
