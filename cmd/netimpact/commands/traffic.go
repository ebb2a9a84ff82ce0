package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
)

func addTrafficFlags(cmd *cobra.Command) {
	addTopologyFlag(cmd)
	f := cmd.Flags()
	f.String("model", string(traffic.Uniform), "demand model: uniform, population or distance")
	f.Float64("total", traffic.DefaultTotal, "total matrix volume")
	f.String("matrix", "", "explicit traffic matrix file, overrides --model")
	f.Float64("capacity", traffic.DefaultCapacity, "capacity of links without one")
	f.Float64("threshold", traffic.DefaultCongestionThreshold, "congestion threshold")
}

// trafficInputs builds the matrix and utilization options from the flags.
func trafficInputs(cmd *cobra.Command, snap *topology.Snapshot) (*traffic.Matrix, traffic.UtilizationOptions, error) {
	f := cmd.Flags()
	capacity, _ := f.GetFloat64("capacity")
	threshold, _ := f.GetFloat64("threshold")
	opts := traffic.UtilizationOptions{DefaultCapacity: capacity, CongestionThreshold: threshold}

	if path, _ := f.GetString("matrix"); path != "" {
		m, err := loadMatrix(path)
		return m, opts, err
	}
	model, _ := f.GetString("model")
	total, _ := f.GetFloat64("total")
	m, err := traffic.GenerateMatrix(snap, traffic.Model(model), traffic.MatrixOptions{Total: total})
	return m, opts, err
}

func loadMatrix(path string) (*traffic.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}
	m := &traffic.Matrix{}
	if topology.FormatFromPath(path) == topology.FormatYAML {
		err = yaml.Unmarshal(data, m)
	} else {
		err = json.Unmarshal(data, m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: matrix %s: %v", topology.ErrInvalidInput, path, err)
	}
	return m, nil
}

func (a *app) utilizationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "utilization",
		Short: "Route a traffic matrix and report link load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			matrix, opts, err := trafficInputs(cmd, &doc.Snapshot)
			if err != nil {
				return err
			}
			rep, err := traffic.Utilization(&doc.Snapshot, matrix, opts)
			if err != nil {
				return err
			}
			return a.emit(rep, func(w io.Writer) { renderUtilization(w, rep) })
		},
	}
	addTrafficFlags(cmd)
	return cmd
}

func (a *app) optimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Propose cost changes that relieve congestion",
		Long: `Searches for link cost increases that lower the maximum or mean
utilization. Constraints come from flags or, with --constraints-id, from a
constraint set in the configured scenario store.`,
		Example: "  netimpact optimize -t net.yaml --objective mean --protect fra-ber",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			cons, err := a.constraints(cmd)
			if err != nil {
				return err
			}
			matrix, uopts, err := trafficInputs(cmd, &doc.Snapshot)
			if err != nil {
				return err
			}
			objective, _ := cmd.Flags().GetString("objective")
			iterations, _ := cmd.Flags().GetInt("max-iterations")
			res, err := traffic.Optimize(cmd.Context(), &doc.Snapshot, matrix, cons, traffic.OptimizeOptions{
				Objective:     traffic.Objective(objective),
				MaxIterations: iterations,
				Utilization:   uopts,
				Logger:        a.logger,
			})
			if err != nil {
				return err
			}
			return a.emit(res, func(w io.Writer) { renderOptimize(w, res) })
		},
	}
	addTrafficFlags(cmd)
	f := cmd.Flags()
	f.String("objective", string(traffic.MaxUtilization), "max or mean")
	f.Int("max-iterations", traffic.DefaultMaxIterations, "search iterations")
	f.Int("max-changes", traffic.DefaultMaxChanges, "links the result may change")
	f.Float64("max-change-percent", 0, "largest cost increase per link in percent, 0 for no limit")
	f.StringSlice("protect", nil, "links whose cost must not change")
	f.Int("min-cost", 0, "lowest allowed cost")
	f.Int("max-cost", 0, "highest allowed cost")
	f.String("constraints-id", "", "stored constraint set to use instead of the flags")
	return cmd
}

// constraints reads the stored set named by --constraints-id or builds one
// from the flags.
func (a *app) constraints(cmd *cobra.Command) (traffic.Constraints, error) {
	f := cmd.Flags()
	if id, _ := f.GetString("constraints-id"); id != "" {
		store, err := a.openStore(cmd.Context())
		if err != nil {
			return traffic.Constraints{}, err
		}
		defer store.Close()
		rec, err := store.Get(cmd.Context(), id)
		if err != nil {
			return traffic.Constraints{}, err
		}
		return rec.Constraints()
	}

	var c traffic.Constraints
	c.MaxChanges, _ = f.GetInt("max-changes")
	c.MaxCostChangePercent, _ = f.GetFloat64("max-change-percent")
	c.ProtectedEdges, _ = f.GetStringSlice("protect")
	c.MinCost, _ = f.GetInt("min-cost")
	c.MaxCost, _ = f.GetInt("max-cost")
	return c, nil
}
