package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/report"
	"github.com/user/custodian/internal/scheduler"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/types"
)

func init() {
	rootCmd.AddCommand(caseCmd)
	caseCmd.AddCommand(caseNewCmd, caseListCmd, caseShowCmd, caseCustodyCmd, caseExportCmd,
		caseDeleteCmd, caseClearCmd, caseAuditCmd, caseDiffCmd)

	caseSensors.register(caseNewCmd)
	caseExportCmd.Flags().StringP("format", "f", "yaml", "export format (yaml|json)")
	caseExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	caseClearCmd.Flags().Bool("yes", false, "confirm deleting every stored case")
}

var caseSensors sensorFlags

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create, inspect and audit sealed cases",
}

var caseNewCmd = &cobra.Command{
	Use:   "new <name> <file>...",
	Short: "Ingest files, analyse them offline and seal a new case",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caseSensors.resolve(cmd)
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			intakes, err := loadIntakes(args[1:], &caseSensors)
			if err != nil {
				return err
			}
			rec, err := sealCase(cmd.Context(), cfg, store, args[0], intakes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Case %s sealed (%d artifacts)\n", rec.ID, len(rec.Evidence))
			fmt.Fprintf(out, "SEAL: %s\n", rec.Seal)
			return nil
		})
	},
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sealed cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			cases, err := store.GetAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("list cases: %w", err)
			}
			if len(cases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cases found.")
				return nil
			}
			audits, err := auditLog(cfg).List()
			if err != nil {
				return err
			}
			status := make(map[types.CaseID]string, len(audits))
			for _, a := range audits {
				if a.Intact {
					status[a.CaseID] = "intact " + a.CheckedAt.Format("2006-01-02")
				} else {
					status[a.CaseID] = "TAMPERED " + a.CheckedAt.Format("2006-01-02")
				}
			}

			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "CREATED", "ITEMS", "SEAL", "AUDIT")
			for _, rec := range cases {
				audit := status[rec.ID]
				if audit == "" {
					audit = "-"
				}
				t.AppendRow([]any{rec.ID.Short(), rec.Name, rec.CreatedAt.Format("2006-01-02 15:04:05"),
					len(rec.Evidence), shortSeal(rec.Seal), audit})
			}
			t.Render()
			return nil
		})
	},
}

func shortSeal(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}

var caseShowCmd = &cobra.Command{
	Use:   "show <case>",
	Short: "Print a case's sealed report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.Report)
			fmt.Fprintf(cmd.OutOrStdout(), "\nSEAL: %s\n", rec.Seal)
			return nil
		})
	},
}

var caseCustodyCmd = &cobra.Command{
	Use:   "custody <case>",
	Short: "Show the chain of custody for every artifact in a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ARTIFACT", "FILE", "AT", "ACTION", "ACTOR", "NOTES")
			for _, a := range rec.Evidence {
				for _, e := range a.Custody {
					t.AppendRow([]any{a.ID.Short(), a.Filename, e.At.Format(time.RFC3339), e.Action, e.Actor, e.Notes})
				}
			}
			t.Render()
			return nil
		})
	},
}

var caseExportCmd = &cobra.Command{
	Use:   "export <case>",
	Short: "Export a sealed case as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			data, err := exportCase(rec, format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported case %s to %s\n", rec.ID, output)
			return nil
		})
	},
}

// exportCase encodes rec. YAML goes through the JSON form so that field
// names match the stored record.
func exportCase(rec *types.CaseRecord, format string) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal case: %w", err)
	}
	switch format {
	case "json":
		return append(data, '\n'), nil
	case "yaml":
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
}

var caseDeleteCmd = &cobra.Command{
	Use:   "delete <case>",
	Short: "Delete one stored case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), rec.ID); err != nil {
				return err
			}
			if err := auditLog(cfg).Forget(rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Case %s deleted.\n", rec.ID)
			return nil
		})
	},
}

var caseClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to clear without --yes")
		}
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			if err := os.Remove(auditLog(cfg).Path()); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cases cleared.")
			return nil
		})
	},
}

var caseAuditCmd = &cobra.Command{
	Use:   "audit [case]",
	Short: "Recompute seals and report hashes of stored cases",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			cases, err := store.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				rec, err := state.Find(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				cases = []*types.CaseRecord{rec}
			}

			auditor := scheduler.NewAuditor(store, auditLog(cfg), nil)
			tampered := 0
			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "RESULT")
			for _, rec := range cases {
				res, err := auditor.Check(rec)
				if err != nil {
					return err
				}
				result := "INTACT"
				if !res.Intact {
					result = res.Error
					tampered++
				}
				t.AppendRow([]any{rec.ID.Short(), rec.Name, result})
			}
			t.Render()
			if tampered > 0 {
				return fmt.Errorf("%d of %d cases failed audit", tampered, len(cases))
			}
			return nil
		})
	},
}

var caseDiffCmd = &cobra.Command{
	Use:   "diff <case> <report-file>",
	Short: "Show where a report copy diverges from the sealed report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		candidate, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read report copy: %w", err)
		}
		return withStore(func(cfg *config.Config, store types.CaseStore) error {
			rec, err := state.Find(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			text := strings.TrimRight(string(candidate), "\n")
			if text == rec.Report {
				fmt.Fprintln(out, "IDENTICAL: report copy matches the sealed report")
				return nil
			}
			fmt.Fprint(out, reportDiff(rec.Report, text))
			if err := report.VerifySelfHash(text); err != nil {
				fmt.Fprintf(out, "\nSELF-HASH: %v\n", err)
			} else {
				fmt.Fprintln(out, "\nSELF-HASH: consistent (copy was re-hashed after editing)")
			}
			return errors.New("report copy differs from the sealed report")
		})
	},
}

// reportDiff renders a line-level diff of sealed against candidate.
func reportDiff(sealed, candidate string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(sealed, candidate)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var mark string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			mark = "+ "
		case diffmatchpatch.DiffDelete:
			mark = "- "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(mark + line + "\n")
		}
	}
	return sb.String()
}
