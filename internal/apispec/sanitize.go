package apispec

import "sort"

// ForbiddenPolicy identifies parameters that must never be declared or sent.
// Names match case-sensitively within one location.
type ForbiddenPolicy struct {
	Names []string
	In    string
}

// DefaultForbiddenPolicy strips the TogoVar `pretty` query flag.
func DefaultForbiddenPolicy() ForbiddenPolicy {
	return ForbiddenPolicy{Names: []string{"pretty", "Pretty"}, In: "query"}
}

// IsForbiddenName reports whether name is on the forbidden list.
func (p ForbiddenPolicy) IsForbiddenName(name string) bool {
	for _, n := range p.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Matches reports whether an inline parameter is forbidden.
func (p ForbiddenPolicy) Matches(param *Parameter) bool {
	if param == nil || param.Ref != "" {
		return false
	}
	in := p.In
	if in == "" {
		in = "query"
	}
	return param.In == in && p.IsForbiddenName(param.Name)
}

// SanitizeReport counts what a Sanitize pass removed.
type SanitizeReport struct {
	SharedRemoved    []string
	OperationRemoved int
}

// Removed is the total number of removed declarations.
func (r SanitizeReport) Removed() int {
	return len(r.SharedRemoved) + r.OperationRemoved
}

// Sanitizer removes forbidden parameters from a description.
type Sanitizer struct {
	policy ForbiddenPolicy
}

// NewSanitizer creates a Sanitizer for policy.
func NewSanitizer(policy ForbiddenPolicy) *Sanitizer {
	return &Sanitizer{policy: policy}
}

// Sanitize edits desc in place so it declares no forbidden parameter:
// shared entries are deleted and every inline or $ref use in path items
// and operations is dropped. Running it twice removes nothing the second time.
func (s *Sanitizer) Sanitize(desc *Description) SanitizeReport {
	var report SanitizeReport
	if desc == nil {
		return report
	}

	// Repeat until stable so an alias chain into a removed entry goes too.
	removedKeys := map[string]bool{}
	for changed := true; changed; {
		changed = false
		for key, param := range desc.Components.Parameters {
			if s.policy.IsForbiddenName(key) || s.forbiddenUse(param, removedKeys) {
				removedKeys[key] = true
				delete(desc.Components.Parameters, key)
				report.SharedRemoved = append(report.SharedRemoved, key)
				changed = true
			}
		}
	}
	sort.Strings(report.SharedRemoved)

	for _, item := range desc.Paths {
		if item == nil {
			continue
		}
		item.Parameters = s.filter(item.Parameters, removedKeys, &report)
		for _, m := range Methods {
			if op := item.Operation(m); op != nil {
				op.Parameters = s.filter(op.Parameters, removedKeys, &report)
			}
		}
	}
	return report
}

func (s *Sanitizer) filter(params []*Parameter, removedKeys map[string]bool, report *SanitizeReport) []*Parameter {
	if len(params) == 0 {
		return params
	}
	kept := params[:0]
	for _, p := range params {
		if s.forbiddenUse(p, removedKeys) {
			report.OperationRemoved++
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (s *Sanitizer) forbiddenUse(p *Parameter, removedKeys map[string]bool) bool {
	if p == nil {
		return false
	}
	if p.Ref != "" {
		key, ok := RefName(p.Ref, ParameterRefPrefix)
		return ok && (removedKeys[key] || s.policy.IsForbiddenName(key))
	}
	return s.policy.Matches(p)
}

// HasForbidden reports whether desc still declares a forbidden parameter anywhere.
func HasForbidden(desc *Description, policy ForbiddenPolicy) bool {
	for key, param := range desc.Components.Parameters {
		if policy.IsForbiddenName(key) || policy.Matches(param) || forbiddenAlias(desc, policy, param) {
			return true
		}
	}
	check := func(params []*Parameter) bool {
		for _, p := range params {
			if policy.Matches(p) {
				return true
			}
			if p != nil && p.Ref != "" {
				if key, ok := RefName(p.Ref, ParameterRefPrefix); ok {
					if policy.IsForbiddenName(key) {
						return true
					}
					if shared, exists := desc.Components.Parameters[key]; exists && (policy.Matches(shared) || forbiddenAlias(desc, policy, shared)) {
						return true
					}
				}
			}
		}
		return false
	}
	for _, item := range desc.Paths {
		if item == nil {
			continue
		}
		if check(item.Parameters) {
			return true
		}
		for _, m := range Methods {
			if op := item.Operation(m); op != nil && check(op.Parameters) {
				return true
			}
		}
	}
	return false
}

// forbiddenAlias reports whether a shared $ref entry leads, through any
// number of hops, to a forbidden key or a forbidden declaration.
func forbiddenAlias(desc *Description, policy ForbiddenPolicy, param *Parameter) bool {
	seen := map[string]bool{}
	for param != nil && param.Ref != "" {
		key, ok := RefName(param.Ref, ParameterRefPrefix)
		if !ok || seen[key] {
			return false
		}
		seen[key] = true
		if policy.IsForbiddenName(key) {
			return true
		}
		next := desc.Components.Parameters[key]
		if policy.Matches(next) {
			return true
		}
		param = next
	}
	return false
}
