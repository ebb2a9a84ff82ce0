package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// loadTopology reads the --topology file of cmd.
func loadTopology(cmd *cobra.Command) (*topology.Document, error) {
	path, _ := cmd.Flags().GetString("topology")
	if path == "" {
		return nil, fmt.Errorf("--topology is required")
	}
	return topology.LoadFile(path)
}

func addTopologyFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("topology", "t", "", "topology file (JSON or YAML)")
}

// newPool starts a worker pool sized from the analysis config.
func (a *app) newPool() (*parallel.WorkerPool, error) {
	return parallel.NewWorkerPool(a.cfg.Analysis.Workers, parallel.WithPanicHandler(func(r any) {
		a.logger.Error("analysis worker panicked", logging.Any("panic", r))
	}))
}

func (a *app) progress(analysis string) parallel.ProgressFunc {
	log := a.logger.With(logging.Analysis(analysis))
	return func(p parallel.Progress) {
		log.Debug("progress", logging.Int("done", p.Done), logging.Int("total", p.Total))
	}
}

func (a *app) pathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "path SOURCE DESTINATION",
		Short:   "Shortest path between two nodes",
		Example: "  netimpact path -t net.yaml fra lon --waves",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			var opts []spf.Option
			if waves, _ := cmd.Flags().GetBool("waves"); waves {
				opts = append(opts, spf.WithWaves())
			}
			res, err := spf.ShortestPath(&doc.Snapshot, args[0], args[1], opts...)
			if err != nil {
				return err
			}
			return a.emit(map[string]any{"reachable": res != nil, "result": res}, func(w io.Writer) {
				renderPath(w, args[0], args[1], res)
			})
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().Bool("waves", false, "include ECMP hop layers")
	return cmd
}

func (a *app) ecmpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecmp SOURCE DESTINATION",
		Short: "Enumerate equal-cost paths",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			maxPaths, _ := cmd.Flags().GetInt("max-paths")
			if maxPaths <= 0 {
				maxPaths = a.cfg.Analysis.MaxECMPPaths
			}
			res, err := spf.EnumerateECMP(&doc.Snapshot, args[0], args[1], maxPaths)
			if err != nil {
				return err
			}
			return a.emit(map[string]any{"reachable": res != nil, "result": res}, func(w io.Writer) {
				renderECMP(w, args[0], args[1], res)
			})
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().Int("max-paths", 0, "enumeration cap (config default when 0)")
	return cmd
}

func (a *app) sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Measure ECMP prevalence across node pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			pool, err := a.newPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			maxPairs, _ := cmd.Flags().GetInt("max-pairs")
			if !cmd.Flags().Changed("max-pairs") {
				maxPairs = a.cfg.Analysis.SamplePairs
			}
			top, _ := cmd.Flags().GetInt("top")
			rep, err := spf.SampleNetworkECMP(cmd.Context(), &doc.Snapshot, spf.SampleOptions{
				MaxPairs:  maxPairs,
				MaxPaths:  a.cfg.Analysis.MaxECMPPaths,
				TopPairs:  top,
				BatchSize: a.cfg.Analysis.BatchSize,
				Pool:      pool,
				Progress:  a.progress("ecmp_sample"),
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			return a.emit(rep, func(w io.Writer) { renderSample(w, rep) })
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().Int("max-pairs", 0, "ordered pairs to evaluate, 0 for all (config default when unset)")
	cmd.Flags().Int("top", spf.DefaultTopPairs, "pairs with the most paths to list")
	return cmd
}

func (a *app) connectivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connectivity",
		Short:   "Partition structure with optional exclusions",
		Example: "  netimpact connectivity -t net.yaml --exclude-edge fra-ber",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			nodes, _ := cmd.Flags().GetStringSlice("exclude-node")
			edges, _ := cmd.Flags().GetStringSlice("exclude-edge")
			res, err := connectivity.Analyze(&doc.Snapshot, nodes, edges)
			if err != nil {
				return err
			}
			return a.emit(res, func(w io.Writer) { renderConnectivity(w, res) })
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().StringSlice("exclude-node", nil, "nodes to remove")
	cmd.Flags().StringSlice("exclude-edge", nil, "links to remove")
	return cmd
}

func (a *app) spofCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spof",
		Short: "Rank single points of failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadTopology(cmd)
			if err != nil {
				return err
			}
			pool, err := a.newPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			maxResults, _ := cmd.Flags().GetInt("max-results")
			if maxResults == 0 {
				maxResults = a.cfg.Analysis.MaxSPOFResults
			}
			rep, err := spof.Detect(cmd.Context(), &doc.Snapshot, spof.Options{
				MaxResults: maxResults,
				BatchSize:  a.cfg.Analysis.BatchSize,
				Pool:       pool,
				Progress:   a.progress("spof"),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
			return a.emit(rep, func(w io.Writer) { renderSPOF(w, rep) })
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().Int("max-results", 0, "points to report, negative for all (config default when 0)")
	return cmd
}

func (a *app) impactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Simulate cost changes and score their blast radius",
		Long: `Simulates the changes listed in the topology file plus any --change
flags, compares every node pair before and after, and recommends whether
to proceed.`,
		Example: "  netimpact impact -t net.yaml --change fra-ber=40 --change par-lon=5/7",
		Args:    cobra.NoArgs,
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
			changes := append(append([]topology.Change{}, doc.Changes...), extra...)

			pool, err := a.newPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			as, err := risk.Assess(cmd.Context(), &doc.Snapshot, changes, impact.Options{
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
		},
	}
	addTopologyFlag(cmd)
	cmd.Flags().StringArray("change", nil, "cost change edge=cost or edge=cost/reverse")
	cmd.Flags().Int("limit", 20, "affected flows to list in text output, 0 for all")
	return cmd
}
