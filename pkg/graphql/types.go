package graphql

import (
	"time"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
)

// Output objects resolve through the default resolver, which matches the
// JSON tags of the analysis result structs.

var stringList = graphql.NewList(graphql.String)

var pathResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PathResult",
	Fields: graphql.Fields{
		"source":      &graphql.Field{Type: graphql.String},
		"destination": &graphql.Field{Type: graphql.String},
		"path":        &graphql.Field{Type: stringList},
		"pathEdgeIds": &graphql.Field{Type: stringList},
		"edgeIds":     &graphql.Field{Type: stringList},
		"arcIds":      &graphql.Field{Type: stringList},
		"cost":        &graphql.Field{Type: graphql.Int},
		"isEcmp":      &graphql.Field{Type: graphql.Boolean},
		"pathCount":   &graphql.Field{Type: graphql.Int},
		"waves":       &graphql.Field{Type: graphql.NewList(stringList)},
	},
})

var ecmpPathsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ECMPPaths",
	Fields: graphql.Fields{
		"source":      &graphql.Field{Type: graphql.String},
		"destination": &graphql.Field{Type: graphql.String},
		"cost":        &graphql.Field{Type: graphql.Int},
		"paths":       &graphql.Field{Type: graphql.NewList(stringList)},
		"totalPaths":  &graphql.Field{Type: graphql.Int},
		"truncated":   &graphql.Field{Type: graphql.Boolean},
		"divergence":  &graphql.Field{Type: stringList},
		"convergence": &graphql.Field{Type: stringList},
	},
})

var connectivityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Connectivity",
	Fields: graphql.Fields{
		"connected":  &graphql.Field{Type: graphql.Boolean},
		"components": &graphql.Field{Type: graphql.NewList(stringList)},
		"isolated":   &graphql.Field{Type: stringList},
	},
})

var spofPointType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SPOF",
	Fields: graphql.Fields{
		"elementId":     &graphql.Field{Type: graphql.String},
		"kind":          &graphql.Field{Type: graphql.String},
		"isolatedNodes": &graphql.Field{Type: graphql.Int},
		"isolated":      &graphql.Field{Type: stringList},
		"partitions":    &graphql.Field{Type: graphql.Int},
		"affectedPaths": &graphql.Field{Type: graphql.Int},
		"severity":      &graphql.Field{Type: graphql.String},
	},
})

var spofReportType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SPOFReport",
	Fields: graphql.Fields{
		"points":     &graphql.Field{Type: graphql.NewList(spofPointType)},
		"found":      &graphql.Field{Type: graphql.Int},
		"evaluated":  &graphql.Field{Type: graphql.Int},
		"total":      &graphql.Field{Type: graphql.Int},
		"incomplete": &graphql.Field{Type: graphql.Boolean},
	},
})

var impactResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ImpactResult",
	Fields: graphql.Fields{
		"source":       &graphql.Field{Type: graphql.String},
		"destination":  &graphql.Field{Type: graphql.String},
		"oldPath":      &graphql.Field{Type: stringList},
		"newPath":      &graphql.Field{Type: stringList},
		"oldCost":      &graphql.Field{Type: graphql.Int},
		"newCost":      &graphql.Field{Type: graphql.Int},
		"oldReachable": &graphql.Field{Type: graphql.Boolean},
		"newReachable": &graphql.Field{Type: graphql.Boolean},
		"pathChanged":  &graphql.Field{Type: graphql.Boolean},
		"ecmpBefore":   &graphql.Field{Type: graphql.Boolean},
		"ecmpAfter":    &graphql.Field{Type: graphql.Boolean},
		"impactType":   &graphql.Field{Type: graphql.String},
	},
})

var impactCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ImpactCount",
	Fields: graphql.Fields{
		"type":  &graphql.Field{Type: graphql.String},
		"count": &graphql.Field{Type: graphql.Int},
	},
})

var countryFlowType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CountryFlow",
	Fields: graphql.Fields{
		"sourceCountry": &graphql.Field{Type: graphql.String},
		"destCountry":   &graphql.Field{Type: graphql.String},
		"flowCount":     &graphql.Field{Type: graphql.Int},
		"affectedFlows": &graphql.Field{Type: graphql.Int},
		"avgCostDelta":  &graphql.Field{Type: graphql.Float},
		"maxCostDelta":  &graphql.Field{Type: graphql.Int},
		"reroutes":      &graphql.Field{Type: graphql.Int},
		"costIncreases": &graphql.Field{Type: graphql.Int},
		"costDecreases": &graphql.Field{Type: graphql.Int},
		"ecmpGained":    &graphql.Field{Type: graphql.Int},
		"ecmpLost":      &graphql.Field{Type: graphql.Int},
	},
})

var breakdownType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ScoreBreakdown",
	Fields: graphql.Fields{
		"flowImpact":       &graphql.Field{Type: graphql.Int},
		"costMagnitude":    &graphql.Field{Type: graphql.Int},
		"countryDiversity": &graphql.Field{Type: graphql.Int},
		"criticalPaths":    &graphql.Field{Type: graphql.Int},
	},
})

var detailsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ScoreDetails",
	Fields: graphql.Fields{
		"affectedFlows":        &graphql.Field{Type: graphql.Int},
		"totalFlows":           &graphql.Field{Type: graphql.Int},
		"affectedShare":        &graphql.Field{Type: graphql.Float},
		"meanCostChange":       &graphql.Field{Type: graphql.Float},
		"maxCostIncrease":      &graphql.Field{Type: graphql.Float},
		"countriesTouched":     &graphql.Field{Type: stringList},
		"reroutes":             &graphql.Field{Type: graphql.Int},
		"crossCountryReroutes": &graphql.Field{Type: graphql.Int},
		"ecmpLost":             &graphql.Field{Type: graphql.Int},
		"ecmpGained":           &graphql.Field{Type: graphql.Int},
		"lostReachability":     &graphql.Field{Type: graphql.Int},
	},
})

var scoreType = graphql.NewObject(graphql.ObjectConfig{
	Name: "BlastRadiusScore",
	Fields: graphql.Fields{
		"overall":   &graphql.Field{Type: graphql.Int},
		"tier":      &graphql.Field{Type: graphql.String},
		"breakdown": &graphql.Field{Type: breakdownType},
		"details":   &graphql.Field{Type: detailsType},
	},
})

var advisoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Advisory",
	Fields: graphql.Fields{
		"code":    &graphql.Field{Type: graphql.String},
		"message": &graphql.Field{Type: graphql.String},
	},
})

var rollbackChangeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RollbackChange",
	Fields: graphql.Fields{
		"edgeId":             &graphql.Field{Type: graphql.String},
		"appliedCost":        &graphql.Field{Type: graphql.Int},
		"restoreCost":        &graphql.Field{Type: graphql.Int},
		"restoreReverseCost": &graphql.Field{Type: graphql.Int},
	},
})

var rollbackType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RollbackPlan",
	Fields: graphql.Fields{
		"changes":       &graphql.Field{Type: graphql.NewList(rollbackChangeType)},
		"flowsToRevert": &graphql.Field{Type: graphql.Int},
		"convergenceMs": &graphql.Field{
			Type: graphql.Float,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				plan, ok := p.Source.(risk.RollbackPlan)
				if !ok {
					return nil, nil
				}
				return float64(plan.Convergence.Total) / float64(time.Millisecond), nil
			},
		},
	},
})

var recommendationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Recommendation",
	Fields: graphql.Fields{
		"tier":       &graphql.Field{Type: graphql.String},
		"action":     &graphql.Field{Type: graphql.String},
		"summary":    &graphql.Field{Type: graphql.String},
		"advisories": &graphql.Field{Type: graphql.NewList(advisoryType)},
		"rollback":   &graphql.Field{Type: rollbackType},
	},
})

// assessmentType flattens the impact report onto the assessment.
var assessmentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Assessment",
	Fields: graphql.Fields{
		"score":          &graphql.Field{Type: scoreType},
		"recommendation": &graphql.Field{Type: recommendationType},
		"countries":      &graphql.Field{Type: graphql.NewList(countryFlowType)},
		"incomplete":     &graphql.Field{Type: graphql.Boolean},
		"totalFlows": &graphql.Field{
			Type: graphql.Int,
			Resolve: withReport(func(r *impact.Report) any {
				return r.TotalFlows
			}),
		},
		"fingerprint": &graphql.Field{
			Type: graphql.String,
			Resolve: withReport(func(r *impact.Report) any {
				return r.Fingerprint
			}),
		},
		"counts": &graphql.Field{
			Type: graphql.NewList(impactCountType),
			Resolve: withReport(func(r *impact.Report) any {
				out := make([]map[string]any, 0, len(impact.Types))
				for _, t := range impact.Types {
					out = append(out, map[string]any{"type": string(t), "count": r.Counts[t]})
				}
				return out
			}),
		},
		"affected": &graphql.Field{
			Type: graphql.NewList(impactResultType),
			Resolve: withReport(func(r *impact.Report) any {
				return r.Affected()
			}),
		},
	},
})

func withReport(fn func(*impact.Report) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		a, ok := p.Source.(*risk.Assessment)
		if !ok || a.Impact == nil {
			return nil, nil
		}
		return fn(a.Impact), nil
	}
}
