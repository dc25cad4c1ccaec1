package settings

import "testing"

func TestScopeChainSkipsAbsentLevels(t *testing.T) {
	uc := UserContext{UserID: "u1", CompanyID: "C1", TeamID: "T1"}
	chain := uc.ScopeChain()

	want := []ScopeRef{
		{Level: ScopeGlobal},
		{Level: ScopeCompany, EntityID: "C1"},
		{Level: ScopeTeam, EntityID: "T1"},
		{Level: ScopeUser, EntityID: "u1"},
	}
	if len(chain) != len(want) {
		t.Fatalf("chain length %d, want %d: %+v", len(chain), len(want), chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("chain[%d] = %+v, want %+v", i, chain[i], want[i])
		}
	}
}

func TestScopeOrdering(t *testing.T) {
	if !ScopeUser.MoreSpecificThan(ScopeGlobal) {
		t.Fatal("user must be more specific than global")
	}
	if !ScopeTeam.MoreSpecificThan(ScopeCompany) {
		t.Fatal("team must be more specific than company")
	}
	if ScopeCompany.MoreSpecificThan(ScopeRole) {
		t.Fatal("company must not be more specific than role")
	}
}

func TestResolveDefinitionLockedGeneralWinsOverLockedSpecific(t *testing.T) {
	def := SettingDefinition{ID: "d1", Key: "k", ValueType: TypeBoolean, DefaultValue: false}
	chain := []ScopeRef{
		{Level: ScopeGlobal},
		{Level: ScopeCompany, EntityID: "C1"},
		{Level: ScopeTeam, EntityID: "T1"},
	}
	values := map[ScopeRef]SettingValue{
		{Level: ScopeCompany, EntityID: "C1"}: {DefinitionID: "d1", Value: true, InheritanceMode: ModeLocked},
		{Level: ScopeTeam, EntityID: "T1"}:    {DefinitionID: "d1", Value: false, InheritanceMode: ModeLocked},
	}

	// The first lock on the least-specific walk is final.
	resolved := resolveDefinition(def, chain, values)
	if resolved.Value != true || resolved.Source.Level != ScopeCompany {
		t.Fatalf("expected company lock to win, got %+v", resolved)
	}
}
