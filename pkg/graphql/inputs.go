package graphql

import (
	"encoding/json"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

var nodeInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "NodeInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"id":         &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"label":      &graphql.InputObjectFieldConfig{Type: graphql.String},
		"country":    &graphql.InputObjectFieldConfig{Type: graphql.String},
		"population": &graphql.InputObjectFieldConfig{Type: graphql.Float},
	},
})

var edgeInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "EdgeInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"id":          &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"from":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"to":          &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"cost":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
		"reverseCost": &graphql.InputObjectFieldConfig{Type: graphql.Int},
		"capacity":    &graphql.InputObjectFieldConfig{Type: graphql.Float},
		"oneWay":      &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
	},
})

var topologyInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "TopologyInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"nodes": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(nodeInputType)))},
		"edges": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edgeInputType)))},
	},
})

var changeInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "ChangeInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"edgeId":         &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"newCost":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
		"newReverseCost": &graphql.InputObjectFieldConfig{Type: graphql.Int},
	},
})

// topologyArg is the argument every analysis query takes.
func topologyArg() *graphql.ArgumentConfig {
	return &graphql.ArgumentConfig{Type: graphql.NewNonNull(topologyInputType)}
}

// decodeArg converts a coerced input value into v. Input field names match
// the JSON tags of the topology types.
func decodeArg(args map[string]any, name string, v any) error {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("argument %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: argument %s: %v", topology.ErrInvalidInput, name, err)
	}
	return nil
}

// snapshotArg decodes and validates the topology argument.
func snapshotArg(args map[string]any) (*topology.Snapshot, error) {
	snap := &topology.Snapshot{}
	if err := decodeArg(args, "topology", snap); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func stringsArg(args map[string]any, name string) []string {
	raw, _ := args[name].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intArg(args map[string]any, name string, def int) int {
	if v, ok := args[name].(int); ok {
		return v
	}
	return def
}
