package topology_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
)

func TestValidate_Valid(t *testing.T) {
	if err := topologytest.Square().Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		snap *topology.Snapshot
		want error
	}{
		{"empty", &topology.Snapshot{}, topology.ErrEmptyTopology},
		{"zero cost", topologytest.New().Nodes("A", "B").Link("ab", "A", "B", 0).Build(), topology.ErrInvalidCost},
		{"negative cost", topologytest.New().Nodes("A", "B").Link("ab", "A", "B", -4).Build(), topology.ErrInvalidCost},
		{"cost above range", topologytest.New().Nodes("A", "B").Link("ab", "A", "B", 70000).Build(), topology.ErrInvalidCost},
		{"bad reverse cost", topologytest.New().Nodes("A", "B").Asym("ab", "A", "B", 10, 0).Build(), topology.ErrInvalidCost},
		{"unknown endpoint", topologytest.New().Nodes("A").Link("ab", "A", "B", 1).Build(), topology.ErrNodeNotFound},
		{"duplicate node", topologytest.New().Nodes("A", "A").Build(), topology.ErrDuplicateID},
		{"duplicate edge", topologytest.New().Nodes("A", "B").Link("ab", "A", "B", 1).Link("ab", "B", "A", 1).Build(), topology.ErrDuplicateID},
		{"self loop", topologytest.New().Nodes("A").Link("aa", "A", "A", 1).Build(), topology.ErrInvalidInput},
		{"bad id", topologytest.New().Nodes("A B").Build(), topology.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if !topology.IsInputError(err) {
				t.Errorf("Expected %v to be classified as input error", err)
			}
		})
	}
}

func TestArcs_Expansion(t *testing.T) {
	snap := topologytest.New().
		Nodes("A", "B", "C").
		Asym("ab", "A", "B", 10, 30).
		Link("bc", "B", "C", 7).
		Arc("ca", "C", "A", 2).
		Build()

	arcs := snap.Arcs()
	if len(arcs) != 5 {
		t.Fatalf("Expected 5 arcs, got %d", len(arcs))
	}

	want := []topology.Arc{
		{ID: "ab", LinkID: "ab", From: "A", To: "B", Cost: 10},
		{ID: "ab#rev", LinkID: "ab", From: "B", To: "A", Cost: 30, Reverse: true},
		{ID: "bc", LinkID: "bc", From: "B", To: "C", Cost: 7},
		{ID: "bc#rev", LinkID: "bc", From: "C", To: "B", Cost: 7, Reverse: true},
		{ID: "ca", LinkID: "ca", From: "C", To: "A", Cost: 2},
	}
	for i, a := range arcs {
		if a != want[i] {
			t.Errorf("arc %d: expected %+v, got %+v", i, want[i], a)
		}
	}
}

func TestApplyChanges_DoesNotMutate(t *testing.T) {
	before := topologytest.Square()
	before.Edges[0].ReverseCost = topology.IntPtr(10)

	after, err := before.ApplyChanges([]topology.Change{{EdgeID: "ab", NewCost: 25}})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	if before.Edges[0].Cost != 10 {
		t.Errorf("input snapshot mutated: cost=%d", before.Edges[0].Cost)
	}
	if after.Edges[0].Cost != 25 {
		t.Errorf("Expected new cost 25, got %d", after.Edges[0].Cost)
	}
	if after.Edges[0].EffectiveReverseCost() != 10 {
		t.Errorf("explicit reverse cost should survive a forward-only change, got %d", after.Edges[0].EffectiveReverseCost())
	}
	if after.Edges[0].ReverseCost == before.Edges[0].ReverseCost {
		t.Error("reverse cost pointer shared between snapshots")
	}
}

func TestApplyChanges_SymmetricWhenNoReverse(t *testing.T) {
	after, err := topologytest.Square().ApplyChanges([]topology.Change{{EdgeID: "ab", NewCost: 25}})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if got := after.Edges[0].EffectiveReverseCost(); got != 25 {
		t.Errorf("Expected symmetric reverse cost 25, got %d", got)
	}
}

func TestApplyChanges_Errors(t *testing.T) {
	snap := topologytest.Square()

	_, err := snap.ApplyChanges([]topology.Change{{EdgeID: "zz", NewCost: 5}})
	if !errors.Is(err, topology.ErrEdgeNotFound) {
		t.Errorf("Expected ErrEdgeNotFound, got %v", err)
	}

	_, err = snap.ApplyChanges([]topology.Change{{EdgeID: "ab", NewCost: 0}})
	if !errors.Is(err, topology.ErrInvalidCost) {
		t.Errorf("Expected ErrInvalidCost, got %v", err)
	}

	_, err = snap.ApplyChanges([]topology.Change{{EdgeID: "ab", NewCost: 5, NewReverseCost: topology.IntPtr(-1)}})
	if !errors.Is(err, topology.ErrInvalidCost) {
		t.Errorf("Expected ErrInvalidCost for reverse cost, got %v", err)
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := topology.Fingerprint(topologytest.Square(), nil)
	b := topology.Fingerprint(topologytest.Square(), nil)
	if a != b {
		t.Fatalf("fingerprint not stable: %s vs %s", a, b)
	}
	c := topology.Fingerprint(topologytest.Square(), []topology.Change{{EdgeID: "ab", NewCost: 25}})
	if a == c {
		t.Error("changes should alter the fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
}

func TestDecode_YAML(t *testing.T) {
	src := `
nodes:
  - id: A
    country: DE
  - id: B
edges:
  - id: ab
    from: A
    to: B
    cost: 10
    reverseCost: 20
changes:
  - edgeId: ab
    newCost: 30
`
	doc, err := topology.Decode(strings.NewReader(src), topology.FormatYAML)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 || len(doc.Changes) != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Edges[0].EffectiveReverseCost() != 20 {
		t.Errorf("Expected reverse cost 20, got %d", doc.Edges[0].EffectiveReverseCost())
	}
	if doc.Nodes[1].CountryOrUnknown() != topology.UnknownCountry {
		t.Errorf("Expected unknown country bucket, got %q", doc.Nodes[1].CountryOrUnknown())
	}
}

func TestDecode_JSONRejectsBadCost(t *testing.T) {
	src := `{"nodes":[{"id":"A"},{"id":"B"}],"edges":[{"id":"ab","from":"A","to":"B","cost":0}]}`
	_, err := topology.Decode(strings.NewReader(src), topology.FormatJSON)
	if !errors.Is(err, topology.ErrInvalidCost) {
		t.Fatalf("Expected ErrInvalidCost, got %v", err)
	}
}

func TestDecode_UnknownChangeEdge(t *testing.T) {
	src := `{"nodes":[{"id":"A"},{"id":"B"}],"edges":[{"id":"ab","from":"A","to":"B","cost":3}],"changes":[{"edgeId":"nope","newCost":4}]}`
	_, err := topology.Decode(strings.NewReader(src), topology.FormatJSON)
	if !errors.Is(err, topology.ErrEdgeNotFound) {
		t.Fatalf("Expected ErrEdgeNotFound, got %v", err)
	}
}

func TestParseChanges(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		want    []topology.Change
		wantErr bool
	}{
		{name: "empty", specs: nil, want: []topology.Change{}},
		{name: "forward", specs: []string{"ab=30"}, want: []topology.Change{{EdgeID: "ab", NewCost: 30}}},
		{
			name:  "reverse",
			specs: []string{"ab=30/40", " cd=5"},
			want: []topology.Change{
				{EdgeID: "ab", NewCost: 30, NewReverseCost: topology.IntPtr(40)},
				{EdgeID: "cd", NewCost: 5},
			},
		},
		{name: "no cost", specs: []string{"ab"}, wantErr: true},
		{name: "no edge", specs: []string{"=5"}, wantErr: true},
		{name: "bad cost", specs: []string{"ab=x"}, wantErr: true},
		{name: "bad reverse", specs: []string{"ab=1/x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := topology.ParseChanges(tt.specs)
			if tt.wantErr {
				if !topology.IsInputError(err) {
					t.Fatalf("ParseChanges(%q) error = %v, want input error", tt.specs, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChanges(%q): %v", tt.specs, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseChanges(%q) = %+v, want %+v", tt.specs, got, tt.want)
			}
		})
	}
}
