package api

import (
	"time"

	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
)

// Request types. Every analysis request carries the full topology.

// PathRequest asks for a shortest path or the ECMP paths between two nodes.
type PathRequest struct {
	Topology    topology.Snapshot `json:"topology"`
	Source      string            `json:"source" validate:"required,elementid"`
	Destination string            `json:"destination" validate:"required,elementid"`
	Waves       bool              `json:"waves,omitempty"`
	MaxPaths    int               `json:"maxPaths,omitempty" validate:"gte=0,lte=1000"`
}

// ECMPSampleRequest configures network-wide ECMP sampling.
type ECMPSampleRequest struct {
	Topology topology.Snapshot `json:"topology"`
	MaxPairs int               `json:"maxPairs,omitempty" validate:"gte=0"`
	MaxPaths int               `json:"maxPaths,omitempty" validate:"gte=0,lte=1000"`
	TopPairs int               `json:"topPairs,omitempty" validate:"gte=0,lte=1000"`
}

// ConnectivityRequest checks connectivity with elements removed.
type ConnectivityRequest struct {
	Topology      topology.Snapshot `json:"topology"`
	ExcludedNodes []string          `json:"excludedNodes,omitempty"`
	ExcludedEdges []string          `json:"excludedEdges,omitempty"`
}

// SPOFRequest scans for single points of failure. MaxResults of zero uses
// the server default; negative returns every point.
type SPOFRequest struct {
	Topology   topology.Snapshot `json:"topology"`
	MaxResults int               `json:"maxResults,omitempty"`
}

// ImpactRequest evaluates a change set.
type ImpactRequest struct {
	Topology topology.Snapshot `json:"topology"`
	Changes  []topology.Change `json:"changes" validate:"dive"`
}

// TrafficRequest routes a traffic matrix. An explicit Matrix wins over
// generating one from Model.
type TrafficRequest struct {
	Topology      topology.Snapshot          `json:"topology"`
	Model         traffic.Model              `json:"model,omitempty" validate:"omitempty,oneof=uniform population distance custom"`
	MatrixOptions traffic.MatrixOptions      `json:"matrixOptions"`
	Matrix        *traffic.Matrix            `json:"matrix,omitempty"`
	Utilization   traffic.UtilizationOptions `json:"utilization"`
}

// OptimizeRequest proposes cost changes that relieve congestion. Stored
// constraints are used when ConstraintsID is set.
type OptimizeRequest struct {
	TrafficRequest
	Objective     traffic.Objective    `json:"objective,omitempty" validate:"omitempty,oneof=max mean"`
	MaxIterations int                  `json:"maxIterations,omitempty" validate:"gte=0,lte=1000"`
	Constraints   *traffic.Constraints `json:"constraints,omitempty"`
	ConstraintsID string               `json:"constraintsId,omitempty"`
}

// ScenarioRequest stores a scenario or a constraint set. Kind defaults to
// scenario.
type ScenarioRequest struct {
	Name        string               `json:"name" validate:"required,max=256"`
	Kind        scenario.Kind        `json:"kind,omitempty" validate:"omitempty,oneof=scenario constraints"`
	Description string               `json:"description,omitempty" validate:"max=1024"`
	Topology    *topology.Snapshot   `json:"topology,omitempty"`
	Changes     []topology.Change    `json:"changes,omitempty"`
	Constraints *traffic.Constraints `json:"constraints,omitempty"`
}

// Response types.

// UtilizationResponse is the routed matrix and its per-arc load.
type UtilizationResponse struct {
	Matrix *traffic.Matrix            `json:"matrix"`
	Report *traffic.UtilizationReport `json:"report"`
}

// ScenarioResponse is a stored record with its decoded payload.
type ScenarioResponse struct {
	scenario.Record
	Scenario    *scenario.Scenario   `json:"scenario,omitempty"`
	Constraints *traffic.Constraints `json:"constraints,omitempty"`
}

// ScenarioListResponse lists records without payloads.
type ScenarioListResponse struct {
	Scenarios []scenario.Record `json:"scenarios"`
	Count     int               `json:"count"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Jobs      int       `json:"jobs"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}
