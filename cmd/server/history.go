package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/history"
	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/schema"
)

var (
	asJSON    bool
	asUnified bool
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [kind] [id]",
		Short: "Print the change history of an aquifer, well, organization or person",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := logging.With(cmd.Context(), logging.New("history"))
			s, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			registry, err := schema.DefaultRegistry()
			if err != nil {
				return err
			}
			ref := domain.EntityRef{Kind: domain.EntityKind(strings.ToLower(args[0])), ID: args[1]}
			entries, err := history.NewEngine(registry, s, history.WithLookupWait(cfg.History.LookupWait)).Build(ctx, ref)
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				encoded, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(encoded))
			case asUnified:
				for _, entry := range entries {
					text, err := domain.RenderUnified(entry)
					if err != nil {
						return err
					}
					cmd.Print(text)
				}
			default:
				cmd.Printf("%s\n", renderTable(entries))
			}
			return nil
		},
	}
}

func renderTable(entries []domain.HistoryEntry) string {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateFooter = false
	tw.Style().Options.SeparateHeader = false
	tw.Style().Options.SeparateRows = false
	tw.AppendHeader(table.Row{
		"DATE",
		"USER",
		"NAME",
		"FIELD",
		"PREVIOUS",
		"NEW",
	})
	for _, entry := range entries {
		date := domain.FormatHistoryDate(entry.Timestamp)
		if entry.IsCreation {
			tw.AppendRow(table.Row{date, entry.Editor, entry.EntityLabel, "(created)", "", ""})
			continue
		}

		fields := make([]string, 0, len(entry.ChangedFields))
		for field := range entry.ChangedFields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			tw.AppendRow(table.Row{
				date,
				entry.Editor,
				entry.EntityLabel,
				field,
				cell(entry.PreviousFields[field]),
				cell(entry.ChangedFields[field]),
			})
		}
	}
	return tw.Render()
}

func cell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []any, map[string]any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

func init() {
	cmd := newHistoryCmd()
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&asUnified, "unified", false, "Print each entry as a unified diff")
	rootCmd.AddCommand(cmd)
}
