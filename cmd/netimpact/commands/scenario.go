package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
)

func (a *app) openStore(ctx context.Context) (scenario.Store, error) {
	return a.openInstrumentedStore(ctx, nil)
}

func (a *app) openInstrumentedStore(ctx context.Context, m *metrics.Registry) (scenario.Store, error) {
	return scenario.Open(ctx, a.cfg.Scenarios, m)
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(store scenario.Store) error) error {
	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *app) scenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Manage stored scenarios and constraint sets",
		Long: `Manage records in the scenario store selected by the config file
(scenarios.backend). The memory backend does not outlive the process; use
the file, postgres or s3 backend from the command line.`,
	}
	cmd.AddCommand(
		a.scenarioListCmd(),
		a.scenarioSaveCmd(),
		a.scenarioSaveConstraintsCmd(),
		a.scenarioGetCmd(),
		a.scenarioDeleteCmd(),
		a.scenarioImpactCmd(),
	)
	return cmd
}

func (a *app) scenarioListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			if kind != "" && !scenario.Kind(kind).Valid() {
				return fmt.Errorf("%w: unknown kind %q", topology.ErrInvalidInput, kind)
			}
			return a.withStore(cmd, func(store scenario.Store) error {
				recs, err := store.List(cmd.Context(), scenario.Kind(kind))
				if err != nil {
					return err
				}
				return a.emit(recs, func(w io.Writer) { renderRecords(w, recs) })
			})
		},
	}
	cmd.Flags().String("kind", "", "scenario or constraints")
	return cmd
}

func (a *app) scenarioSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "save NAME",
		Short:   "Store a topology and its pending changes",
		Example: "  netimpact scenario save maint-window -t net.yaml --change fra-ber=40",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			specs, _ := cmd.Flags().GetStringArray("change")
			extra, err := topology.ParseChanges(specs)
			if err != nil {
				return err
			}
			desc, _ := cmd.Flags().GetString("description")
			rec, err := scenario.NewScenarioRecord(args[0], &scenario.Scenario{
				Description: desc,
				Topology:    doc.Snapshot,
				Changes:     append(append([]topology.Change{}, doc.Changes...), extra...),
			})
			if err != nil {
				return err
			}
			return a.put(cmd, rec)
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().StringArray("change", nil, "cost change edge=cost or edge=cost/reverse")
	cmd.Flags().String("description", "", "free-form description")
	return cmd
}

func (a *app) scenarioSaveConstraintsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save-constraints NAME FILE",
		Short: "Store an optimizer constraint set from a YAML or JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read constraints: %w", err)
			}
			var c traffic.Constraints
			if topology.FormatFromPath(args[1]) == topology.FormatYAML {
				err = yaml.Unmarshal(data, &c)
			} else {
				err = json.Unmarshal(data, &c)
			}
			if err != nil {
				return fmt.Errorf("%w: constraints %s: %v", topology.ErrInvalidInput, args[1], err)
			}
			rec, err := scenario.NewConstraintsRecord(args[0], c)
			if err != nil {
				return err
			}
			return a.put(cmd, rec)
		},
	}
	return cmd
}

func (a *app) put(cmd *cobra.Command, rec *scenario.Record) error {
	return a.withStore(cmd, func(store scenario.Store) error {
		if err := store.Put(cmd.Context(), rec); err != nil {
			return err
		}
		return a.emit(rec, func(w io.Writer) {
			fmt.Fprintf(w, "%s stored %s %s\n", successStyle.Render("✓"), rec.Kind, rec.ID)
		})
	})
}

func (a *app) scenarioGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store scenario.Store) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var payload any
				switch rec.Kind {
				case scenario.KindConstraints:
					payload, err = rec.Constraints()
				default:
					payload, err = rec.Scenario()
				}
				if err != nil {
					return err
				}
				view := map[string]any{"record": rec, "payload": payload}
				return a.emit(view, func(w io.Writer) {
					field(w, "id", rec.ID)
					field(w, "kind", rec.Kind)
					field(w, "name", rec.Name)
					field(w, "created", rec.CreatedAt.Format("2006-01-02 15:04:05"))
					if rec.Fingerprint != "" {
						field(w, "fingerprint", rec.Fingerprint)
					}
					enc := yaml.NewEncoder(w)
					enc.SetIndent(2)
					_ = enc.Encode(payload)
					_ = enc.Close()
				})
			})
		},
	}
}

func (a *app) scenarioDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store scenario.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return a.emit(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "%s deleted %s\n", successStyle.Render("✓"), args[0])
				})
			})
		},
	}
}

func (a *app) scenarioImpactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact ID",
		Short: "Assess a stored scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store scenario.Store) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				sc, err := rec.Scenario()
				if err != nil {
					return err
				}
				pool, err := a.newPool()
				if err != nil {
					return err
				}
				defer pool.Close()

				as, err := risk.Assess(cmd.Context(), &sc.Topology, sc.Changes, impact.Options{
					BatchSize: a.cfg.Analysis.BatchSize,
					Pool:      pool,
					Progress:  a.progress("impact"),
					Logger:    a.logger,
				}, a.cfg.Risk)
				if err != nil {
					return err
				}
				limit, _ := cmd.Flags().GetInt("limit")
				return a.emit(as, func(w io.Writer) { renderAssessment(w, as, limit) })
			})
		},
	}
	cmd.Flags().Int("limit", 20, "affected flows to list in text output, 0 for all")
	return cmd
}
