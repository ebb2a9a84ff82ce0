package traffic

import (
	"sort"

	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

const (
	// DefaultCapacity is assumed for links without a capacity.
	DefaultCapacity = 10000.0
	// DefaultCongestionThreshold flags links above 80% utilization.
	DefaultCongestionThreshold = 0.8
)

// UtilizationOptions configures Utilization.
type UtilizationOptions struct {
	DefaultCapacity     float64 `json:"defaultCapacity" yaml:"default_capacity"`
	CongestionThreshold float64 `json:"congestionThreshold" yaml:"congestion_threshold"`
}

func (o UtilizationOptions) withDefaults() UtilizationOptions {
	if o.DefaultCapacity <= 0 {
		o.DefaultCapacity = DefaultCapacity
	}
	if o.CongestionThreshold <= 0 {
		o.CongestionThreshold = DefaultCongestionThreshold
	}
	return o
}

// LinkLoad is the load carried by one directed arc.
type LinkLoad struct {
	ArcID       string  `json:"arcId"`
	LinkID      string  `json:"linkId"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Cost        int     `json:"cost"`
	Load        float64 `json:"load"`
	Capacity    float64 `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// UtilizationReport is the per-arc load of a routed matrix.
type UtilizationReport struct {
	Links           []LinkLoad `json:"links"`
	MaxUtilization  float64    `json:"maxUtilization"`
	MeanUtilization float64    `json:"meanUtilization"`
	Congested       []LinkLoad `json:"congested"`
	Routed          float64    `json:"routed"`
	Unrouted        float64    `json:"unrouted"`
}

// Utilization routes every demand over its canonical shortest path and sums
// the load per directed arc. Demands between disconnected nodes are counted
// as unrouted.
func Utilization(snap *topology.Snapshot, matrix *Matrix, opts UtilizationOptions) (*UtilizationReport, error) {
	g, err := spf.NewGraph(snap)
	if err != nil {
		return nil, err
	}
	return utilization(g, matrix, opts.withDefaults())
}

func utilization(g *spf.Graph, matrix *Matrix, opts UtilizationOptions) (*UtilizationReport, error) {
	bySource := make(map[int][]Demand)
	var order []int
	for _, d := range matrix.Demands {
		s, ok := g.Index(d.Source)
		if !ok {
			return nil, topology.NodeNotFound("Utilization", d.Source)
		}
		if _, ok := g.Index(d.Destination); !ok {
			return nil, topology.NodeNotFound("Utilization", d.Destination)
		}
		if _, seen := bySource[s]; !seen {
			order = append(order, s)
		}
		bySource[s] = append(bySource[s], d)
	}

	load := make([]float64, g.Arcs())
	report := &UtilizationReport{}
	for _, s := range order {
		t := g.Tree(s)
		for _, d := range bySource[s] {
			dst, _ := g.Index(d.Destination)
			if !t.Reachable(dst) {
				report.Unrouted += d.Volume
				continue
			}
			_, arcs := t.Canonical(dst)
			for _, a := range arcs {
				load[a] += d.Volume
			}
			report.Routed += d.Volume
		}
	}

	report.Links = make([]LinkLoad, g.Arcs())
	var sum float64
	for i := range report.Links {
		arc := g.Arc(i)
		capacity := arc.Capacity
		if capacity <= 0 {
			capacity = opts.DefaultCapacity
		}
		ll := LinkLoad{
			ArcID:       arc.ID,
			LinkID:      arc.LinkID,
			From:        arc.From,
			To:          arc.To,
			Cost:        arc.Cost,
			Load:        load[i],
			Capacity:    capacity,
			Utilization: load[i] / capacity,
		}
		report.Links[i] = ll
		sum += ll.Utilization
		if ll.Utilization > report.MaxUtilization {
			report.MaxUtilization = ll.Utilization
		}
		if ll.Utilization > opts.CongestionThreshold {
			report.Congested = append(report.Congested, ll)
		}
	}
	if len(report.Links) > 0 {
		report.MeanUtilization = sum / float64(len(report.Links))
	}
	sortByUtilization(report.Congested)
	return report, nil
}

func sortByUtilization(links []LinkLoad) {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Utilization > links[j].Utilization
	})
}
