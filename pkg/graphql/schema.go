// Package graphql exposes the network analyses as a read-only GraphQL
// schema. Every query carries the topology it runs against.
package graphql

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Options configures the resolvers.
type Options struct {
	MaxECMPPaths   int
	MaxSPOFResults int
	BatchSize      int
	Pool           *parallel.WorkerPool
	Logger         logging.Logger
	Metrics        *metrics.Registry
	Risk           risk.Config
}

type resolver struct {
	opts Options
}

// NewSchema builds the analysis schema.
func NewSchema(opts Options) (graphql.Schema, error) {
	if opts.Risk == (risk.Config{}) {
		opts.Risk = risk.DefaultConfig()
	}
	if err := opts.Risk.Validate(); err != nil {
		return graphql.Schema{}, err
	}
	r := &resolver{opts: opts}

	pairArgs := func(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		args := graphql.FieldConfigArgument{
			"topology":    topologyArg(),
			"source":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return "ok", nil
				},
			},
			"shortestPath": &graphql.Field{
				Type: pathResultType,
				Args: pairArgs(graphql.FieldConfigArgument{
					"waves": &graphql.ArgumentConfig{Type: graphql.Boolean},
				}),
				Resolve: r.shortestPath,
			},
			"ecmpPaths": &graphql.Field{
				Type: ecmpPathsType,
				Args: pairArgs(graphql.FieldConfigArgument{
					"maxPaths": &graphql.ArgumentConfig{Type: graphql.Int},
				}),
				Resolve: r.ecmpPaths,
			},
			"connectivity": &graphql.Field{
				Type: connectivityType,
				Args: graphql.FieldConfigArgument{
					"topology":      topologyArg(),
					"excludedNodes": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
					"excludedEdges": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
				},
				Resolve: r.connectivity,
			},
			"spof": &graphql.Field{
				Type: spofReportType,
				Args: graphql.FieldConfigArgument{
					"topology":   topologyArg(),
					"maxResults": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: r.spof,
			},
			"assess": &graphql.Field{
				Type: assessmentType,
				Args: graphql.FieldConfigArgument{
					"topology": topologyArg(),
					"changes":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(changeInputType)))},
				},
				Resolve: r.assess,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}
	return schema, nil
}

func (r *resolver) shortestPath(p graphql.ResolveParams) (any, error) {
	snap, err := snapshotArg(p.Args)
	if err != nil {
		return nil, err
	}
	var opts []spf.Option
	if waves, _ := p.Args["waves"].(bool); waves {
		opts = append(opts, spf.WithWaves())
	}
	res, err := spf.ShortestPath(snap, p.Args["source"].(string), p.Args["destination"].(string), opts...)
	if err != nil || res == nil {
		// Unreachable resolves to null.
		return nil, err
	}
	return res, nil
}

func (r *resolver) ecmpPaths(p graphql.ResolveParams) (any, error) {
	snap, err := snapshotArg(p.Args)
	if err != nil {
		return nil, err
	}
	maxPaths := intArg(p.Args, "maxPaths", r.opts.MaxECMPPaths)
	res, err := spf.EnumerateECMP(snap, p.Args["source"].(string), p.Args["destination"].(string), maxPaths)
	if err != nil || res == nil {
		return nil, err
	}
	return res, nil
}

func (r *resolver) connectivity(p graphql.ResolveParams) (any, error) {
	snap, err := snapshotArg(p.Args)
	if err != nil {
		return nil, err
	}
	return connectivity.Analyze(snap, stringsArg(p.Args, "excludedNodes"), stringsArg(p.Args, "excludedEdges"))
}

func (r *resolver) spof(p graphql.ResolveParams) (any, error) {
	snap, err := snapshotArg(p.Args)
	if err != nil {
		return nil, err
	}
	return spof.Detect(contextOf(p), snap, spof.Options{
		MaxResults: intArg(p.Args, "maxResults", r.opts.MaxSPOFResults),
		BatchSize:  r.opts.BatchSize,
		Pool:       r.opts.Pool,
		Logger:     r.opts.Logger,
		Metrics:    r.opts.Metrics,
	})
}

func (r *resolver) assess(p graphql.ResolveParams) (any, error) {
	snap, err := snapshotArg(p.Args)
	if err != nil {
		return nil, err
	}
	var changes []topology.Change
	if err := decodeArg(p.Args, "changes", &changes); err != nil {
		return nil, err
	}
	return risk.Assess(contextOf(p), snap, changes, impact.Options{
		BatchSize: r.opts.BatchSize,
		Pool:      r.opts.Pool,
		Logger:    r.opts.Logger,
		Metrics:   r.opts.Metrics,
	}, r.opts.Risk)
}

func contextOf(p graphql.ResolveParams) context.Context {
	if p.Context != nil {
		return p.Context
	}
	return context.Background()
}
