package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/condengine/internal/core/db"
)

var indexCmd = &cobra.Command{
	Use:   "index <items.json>",
	Short: "Save items into the item index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		items, err := decodeItems(data)
		if err != nil {
			return err
		}
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireDatabase(); err != nil {
			return err
		}
		if err := rt.items.Save(cmd.Context(), items...); err != nil {
			return err
		}
		logger.Info("indexed items", "count", len(items))

		counts, err := rt.items.ItemCounts(cmd.Context())
		if err != nil {
			return err
		}
		itemTypes := make([]string, 0, len(counts))
		for t := range counts {
			itemTypes = append(itemTypes, t)
		}
		sort.Strings(itemTypes)
		tw := newTable(cmd.OutOrStdout(), "Item Type", "Stored")
		for _, t := range itemTypes {
			tw.AppendRow([]any{t, counts[t]})
		}
		tw.Render()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage item index schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.MigrateUp(conn, db.WithLogger(logger)); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		status, err := db.MigrateStatus(conn)
		if err != nil {
			return err
		}
		tw := newTable(cmd.OutOrStdout(), "Migration", "Applied", "Applied At", "Duration")
		for _, s := range status {
			at, took := "-", "-"
			if s.AppliedAt != nil {
				at = s.AppliedAt.UTC().Format(time.RFC3339)
				took = fmt.Sprintf("%dms", s.ExecutionMs)
			}
			tw.AppendRow([]any{s.ID, s.Applied, at, took})
		}
		tw.Render()
		return nil
	},
}

var definitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "Inspect and persist deployed condition and action types",
}

var definitionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployed condition and action types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		tw := newTable(cmd.OutOrStdout(), "Kind", "ID", "Evaluator", "Query Builder", "Parent")
		for _, ct := range rt.registry.ConditionTypes() {
			parent := "-"
			if ct.ParentCondition != nil {
				parent = ct.ParentCondition.TypeID
			}
			tw.AppendRow([]any{db.DefinitionCondition, ct.ID, orDash(ct.ConditionEvaluator), orDash(ct.QueryBuilder), parent})
		}
		for _, at := range rt.registry.ActionTypes() {
			tw.AppendRow([]any{db.DefinitionAction, at.ID, orDash(at.Executor), "-", "-"})
		}
		tw.Render()
		return nil
	},
}

var definitionsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Store every deployed type in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireDatabase(); err != nil {
			return err
		}
		if err := rt.defs.SaveRegistry(cmd.Context(), rt.registry); err != nil {
			return err
		}
		logger.Info("definitions saved",
			"condition_types", len(rt.registry.ConditionTypes()),
			"action_types", len(rt.registry.ActionTypes()))
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	definitionsCmd.AddCommand(definitionsListCmd, definitionsSaveCmd)
	rootCmd.AddCommand(indexCmd, migrateCmd, definitionsCmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
