package settings

import (
	"errors"
	"strings"
	"time"
)

// ScopeLevel is one rung of the organizational hierarchy, ordered from least
// to most specific. The order is the tie-break for "most specific wins".
type ScopeLevel string

const (
	ScopeGlobal     ScopeLevel = "global"
	ScopeCompany    ScopeLevel = "company"
	ScopeLocation   ScopeLevel = "location"
	ScopeDepartment ScopeLevel = "department"
	ScopeTeam       ScopeLevel = "team"
	ScopeRole       ScopeLevel = "role"
	ScopeUser       ScopeLevel = "user"
)

var scopeRank = map[ScopeLevel]int{
	ScopeGlobal:     0,
	ScopeCompany:    1,
	ScopeLocation:   2,
	ScopeDepartment: 3,
	ScopeTeam:       4,
	ScopeRole:       5,
	ScopeUser:       6,
}

func (l ScopeLevel) Valid() bool {
	_, ok := scopeRank[l]
	return ok
}

// MoreSpecificThan reports whether l sits lower in the hierarchy than other.
func (l ScopeLevel) MoreSpecificThan(other ScopeLevel) bool {
	return scopeRank[l] > scopeRank[other]
}

type ValueType string

const (
	TypeBoolean ValueType = "boolean"
	TypeNumber  ValueType = "number"
	TypeString  ValueType = "string"
	TypeArray   ValueType = "array"
	TypeObject  ValueType = "object"
)

type InheritanceMode string

const (
	ModeInherit InheritanceMode = "inherit"
	ModeLocked  InheritanceMode = "locked"
)

// SettingDefinition is static registry data, unique per (module, key).
type SettingDefinition struct {
	ID               string    `json:"id"`
	Module           string    `json:"module"`
	Key              string    `json:"key"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	ValueType        ValueType `json:"valueType"`
	DefaultValue     any       `json:"defaultValue"`
	Category         string    `json:"category"`
	IsActive         bool      `json:"isActive"`
	AffectedFeatures []string  `json:"affectedFeatures"`
	SortOrder        int       `json:"sortOrder"`
}

// SettingValue is a scoped override of one definition.
type SettingValue struct {
	ID              string          `json:"id"`
	DefinitionID    string          `json:"definitionId"`
	ScopeLevel      ScopeLevel      `json:"scopeLevel"`
	ScopeEntityID   string          `json:"scopeEntityId"`
	ScopeEntityName string          `json:"scopeEntityName"`
	Value           any             `json:"value"`
	InheritanceMode InheritanceMode `json:"inheritanceMode"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Source struct {
	Level    ScopeLevel `json:"level"`
	EntityID string     `json:"entityId"`
}

// EffectiveSetting is derived, never stored: the winner of one resolution.
type EffectiveSetting struct {
	Key        string            `json:"key"`
	Value      any               `json:"value"`
	Definition SettingDefinition `json:"definition"`
	Source     Source            `json:"source"`
}

type EffectiveSettings map[string]EffectiveSetting

// UserContext is the ambient resolution key. Supplied by the session layer;
// the resolver never authenticates.
type UserContext struct {
	UserID       string `json:"userId"`
	RoleID       string `json:"roleId,omitempty"`
	TeamID       string `json:"teamId,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
}

// CacheKey serializes the full context tuple. Cache entries must never be
// keyed by module alone, or a company switch could surface stale values.
func (c UserContext) CacheKey() string {
	return strings.Join([]string{c.UserID, c.RoleID, c.TeamID, c.DepartmentID, c.LocationID, c.CompanyID}, "|")
}

// ValueWrite is one pending scoped override in a save call.
type ValueWrite struct {
	Key             string          `json:"key"`
	Value           any             `json:"value"`
	ScopeLevel      ScopeLevel      `json:"scopeLevel"`
	ScopeEntityID   string          `json:"scopeEntityId"`
	InheritanceMode InheritanceMode `json:"inheritanceMode"`
}

// PermissionCheckResult is the structured answer of CheckPermission. It is
// produced even when no context is available, so UI callers always get a
// reason to show.
type PermissionCheckResult struct {
	Allowed      bool    `json:"allowed"`
	Reason       string  `json:"reason"`
	SettingKey   string  `json:"settingKey"`
	SettingValue any     `json:"settingValue,omitempty"`
	Source       *Source `json:"source,omitempty"`
}

var (
	ErrNoContext     = errors.New("no user context")
	ErrUnknownModule = errors.New("unknown settings module")
	ErrUnknownKey    = errors.New("unknown setting key")
	ErrInvalidScope  = errors.New("invalid scope level")
	ErrInvalidValue  = errors.New("value does not match definition type")
)
