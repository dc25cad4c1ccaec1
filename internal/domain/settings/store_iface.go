package settings

import "context"

// StoreAPI is the persistence seam for the resolver. The production
// implementation is Postgres; tests substitute an in-memory fake.
type StoreAPI interface {
	// ListActiveDefinitions returns the active definitions of a module,
	// ordered by sort order. An unknown module yields an empty slice.
	ListActiveDefinitions(ctx context.Context, module string) ([]SettingDefinition, error)

	// ListValues returns the configured values for the module's definitions,
	// restricted to the given candidate scopes.
	ListValues(ctx context.Context, module string, chain []ScopeRef) ([]SettingValue, error)

	// UpsertValues writes scoped overrides all-or-nothing. A write replaces
	// any existing row at the same (definition, level, entity) in place.
	UpsertValues(ctx context.Context, module string, writes []ValueWrite) error
}
