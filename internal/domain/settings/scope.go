package settings

// ScopeRef identifies one candidate level in a resolution walk.
type ScopeRef struct {
	Level    ScopeLevel
	EntityID string
}

// ScopeChain builds the candidate chain for a context, ordered least specific
// to most specific. Levels whose id is absent from the context are skipped;
// global is always a candidate and carries no entity id.
func (c UserContext) ScopeChain() []ScopeRef {
	chain := []ScopeRef{{Level: ScopeGlobal}}
	if c.CompanyID != "" {
		chain = append(chain, ScopeRef{Level: ScopeCompany, EntityID: c.CompanyID})
	}
	if c.LocationID != "" {
		chain = append(chain, ScopeRef{Level: ScopeLocation, EntityID: c.LocationID})
	}
	if c.DepartmentID != "" {
		chain = append(chain, ScopeRef{Level: ScopeDepartment, EntityID: c.DepartmentID})
	}
	if c.TeamID != "" {
		chain = append(chain, ScopeRef{Level: ScopeTeam, EntityID: c.TeamID})
	}
	if c.RoleID != "" {
		chain = append(chain, ScopeRef{Level: ScopeRole, EntityID: c.RoleID})
	}
	if c.UserID != "" {
		chain = append(chain, ScopeRef{Level: ScopeUser, EntityID: c.UserID})
	}
	return chain
}

// resolveDefinition walks the chain least specific first. The first locked
// value encountered is final: locked values exist so a team or user cannot
// silently override a compliance-relevant company or global choice. Without a
// lock the most specific configured value wins, and with no value at all the
// definition default wins with a global source.
func resolveDefinition(def SettingDefinition, chain []ScopeRef, values map[ScopeRef]SettingValue) EffectiveSetting {
	var winner *SettingValue
	var winnerRef ScopeRef
	for _, ref := range chain {
		val, ok := values[ref]
		if !ok {
			continue
		}
		if val.InheritanceMode == ModeLocked {
			return EffectiveSetting{
				Key:        def.Key,
				Value:      val.Value,
				Definition: def,
				Source:     Source{Level: ref.Level, EntityID: ref.EntityID},
			}
		}
		v := val
		winner = &v
		winnerRef = ref
	}
	if winner != nil {
		return EffectiveSetting{
			Key:        def.Key,
			Value:      winner.Value,
			Definition: def,
			Source:     Source{Level: winnerRef.Level, EntityID: winnerRef.EntityID},
		}
	}
	return EffectiveSetting{
		Key:        def.Key,
		Value:      def.DefaultValue,
		Definition: def,
		Source:     Source{Level: ScopeGlobal},
	}
}

// matchesType reports whether a decoded JSON value fits the definition type.
// JSON numbers decode as float64; integers are accepted for number settings.
func matchesType(t ValueType, v any) bool {
	if v == nil {
		return false
	}
	switch t {
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}
