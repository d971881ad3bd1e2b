package model

import "github.com/rotisserie/eris"

// KPIInstance is one KPI inside a filter group, carrying one or more method
// configs combined by MethodOp.
type KPIInstance struct {
	KPI      string         `json:"kpi" yaml:"kpi"`
	MethodOp BoolOp         `json:"method_op,omitempty" yaml:"method_op,omitempty"`
	Methods  []MethodConfig `json:"methods" yaml:"methods"`
}

// FilterGroup combines KPI instances under one boolean operator.
type FilterGroup struct {
	Operator BoolOp        `json:"operator,omitempty" yaml:"operator,omitempty"`
	KPIs     []KPIInstance `json:"kpis" yaml:"kpis"`
}

// UniverseFilter restricts the instrument universe by provider metadata
// before any KPI evaluation. Empty slices leave that dimension unfiltered.
type UniverseFilter struct {
	CountryIDs []int `json:"country_ids,omitempty" yaml:"country_ids,omitempty"`
	MarketIDs  []int `json:"market_ids,omitempty" yaml:"market_ids,omitempty"`
	SectorIDs  []int `json:"sector_ids,omitempty" yaml:"sector_ids,omitempty"`
	BranchIDs  []int `json:"branch_ids,omitempty" yaml:"branch_ids,omitempty"`
}

// ScreeningRequest is the immutable value object describing one screening
// run: which instruments to consider and which conditions they must pass.
// It is constructed from user input (YAML file or HTTP body), validated
// once, and read-only for the whole run.
type ScreeningRequest struct {
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Provider string         `json:"provider,omitempty" yaml:"provider,omitempty"`
	Universe UniverseFilter `json:"universe,omitempty" yaml:"universe,omitempty"`
	Groups   []FilterGroup  `json:"groups" yaml:"groups"`
	// GroupOp combines the groups at the root; defaults to AND.
	GroupOp BoolOp `json:"group_op,omitempty" yaml:"group_op,omitempty"`
}

// Normalize fills operator defaults: AND for group combination, AND for
// method combination within a KPI instance, AND for group operators.
func (r *ScreeningRequest) Normalize() {
	if r.GroupOp == "" {
		r.GroupOp = OpAND
	}
	for gi := range r.Groups {
		if r.Groups[gi].Operator == "" {
			r.Groups[gi].Operator = OpAND
		}
		for ki := range r.Groups[gi].KPIs {
			if r.Groups[gi].KPIs[ki].MethodOp == "" {
				r.Groups[gi].KPIs[ki].MethodOp = OpAND
			}
		}
	}
}

// Validate checks the request is well formed: at least one group with at
// least one KPI instance and method, valid operators, valid method configs.
// Configuration errors here are fatal to the run; they are surfaced before
// any per-stock evaluation begins.
func (r *ScreeningRequest) Validate() error {
	if len(r.Groups) == 0 {
		return eris.New("model: screening request has no filter groups")
	}
	if !r.GroupOp.Valid() {
		return eris.Errorf("model: invalid group relationship operator %q", r.GroupOp)
	}
	for gi, group := range r.Groups {
		if !group.Operator.Valid() {
			return eris.Errorf("model: group %d: invalid operator %q", gi, group.Operator)
		}
		if len(group.KPIs) == 0 {
			return eris.Errorf("model: group %d has no KPI instances", gi)
		}
		for ki, inst := range group.KPIs {
			if inst.KPI == "" {
				return eris.Errorf("model: group %d kpi %d: missing KPI name", gi, ki)
			}
			if !inst.MethodOp.Valid() {
				return eris.Errorf("model: group %d kpi %d: invalid method operator %q", gi, ki, inst.MethodOp)
			}
			if len(inst.Methods) == 0 {
				return eris.Errorf("model: group %d kpi %d (%s): no methods", gi, ki, inst.KPI)
			}
			for mi, method := range inst.Methods {
				if err := method.Validate(); err != nil {
					return eris.Wrapf(err, "model: group %d kpi %d (%s) method %d", gi, ki, inst.KPI, mi)
				}
			}
		}
	}
	return nil
}

// KPINames returns the distinct KPI short-names the request evaluates, in
// first-appearance order.
func (r *ScreeningRequest) KPINames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, group := range r.Groups {
		for _, inst := range group.KPIs {
			if !seen[inst.KPI] {
				seen[inst.KPI] = true
				names = append(names, inst.KPI)
			}
		}
	}
	return names
}

// FrequencyFor returns the data frequency required for a KPI, taken from the
// first method that names it. Defaults to quarterly when the KPI does not
// appear (callers only ask for KPIs in the request).
func (r *ScreeningRequest) FrequencyFor(kpi string) Frequency {
	for _, group := range r.Groups {
		for _, inst := range group.KPIs {
			if inst.KPI != kpi {
				continue
			}
			for _, method := range inst.Methods {
				if method.Duration.Frequency != "" {
					return method.Duration.Frequency
				}
			}
		}
	}
	return FrequencyQuarterly
}
