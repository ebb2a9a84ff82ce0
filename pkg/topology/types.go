package topology

// UnknownCountry is the bucket used for nodes without a country code.
const UnknownCountry = "Unknown"

// ReverseSuffix is appended to an edge ID to name its reverse-direction arc.
const ReverseSuffix = "#rev"

// Node is a router in the topology.
type Node struct {
	ID         string  `json:"id" yaml:"id" validate:"required,elementid"`
	Label      string  `json:"label,omitempty" yaml:"label,omitempty" validate:"max=256"`
	Country    string  `json:"country,omitempty" yaml:"country,omitempty" validate:"country"`
	Population float64 `json:"population,omitempty" yaml:"population,omitempty" validate:"gte=0"`
}

// CountryOrUnknown returns the node country, or UnknownCountry when unset.
func (n Node) CountryOrUnknown() string {
	if n.Country == "" {
		return UnknownCountry
	}
	return n.Country
}

// Edge is a logical link between two routers. Cost applies From→To; ReverseCost
// applies To→From and defaults to Cost when nil. OneWay links have no reverse
// direction at all.
type Edge struct {
	ID          string  `json:"id" yaml:"id" validate:"required,elementid"`
	From        string  `json:"from" yaml:"from" validate:"required,elementid"`
	To          string  `json:"to" yaml:"to" validate:"required,elementid,nefield=From"`
	Cost        int     `json:"cost" yaml:"cost"`
	ReverseCost *int    `json:"reverseCost,omitempty" yaml:"reverseCost,omitempty"`
	Capacity    float64 `json:"capacity,omitempty" yaml:"capacity,omitempty" validate:"gte=0"`
	OneWay      bool    `json:"oneWay,omitempty" yaml:"oneWay,omitempty"`
}

// EffectiveReverseCost returns the To→From cost.
func (e Edge) EffectiveReverseCost() int {
	if e.ReverseCost != nil {
		return *e.ReverseCost
	}
	return e.Cost
}

// Arc is one direction of a logical link.
type Arc struct {
	ID       string  `json:"id"`
	LinkID   string  `json:"linkId"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Cost     int     `json:"cost"`
	Capacity float64 `json:"capacity,omitempty"`
	Reverse  bool    `json:"reverse,omitempty"`
}

// Change replaces the cost of an existing edge. When the edge has no explicit
// reverse cost and NewReverseCost is nil, NewCost applies in both directions.
type Change struct {
	EdgeID         string `json:"edgeId" yaml:"edgeId" validate:"required,elementid"`
	NewCost        int    `json:"newCost" yaml:"newCost"`
	NewReverseCost *int   `json:"newReverseCost,omitempty" yaml:"newReverseCost,omitempty"`
}

// Snapshot is the immutable node and edge set an analysis runs against.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// IntPtr is a helper for optional cost fields.
func IntPtr(v int) *int {
	return &v
}
