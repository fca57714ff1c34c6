// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// ActionUse is the action of capability rules.
const ActionUse = "use"

// Config configures the enforcer.
type Config struct {
	// PolicyPath overrides the embedded policy when the file exists.
	PolicyPath string

	// CacheTTL bounds how long a decision is reused. Zero disables caching.
	CacheTTL time.Duration
}

// DefaultConfig returns the embedded policy with a five minute cache.
func DefaultConfig() *Config {
	return &Config{CacheTTL: 5 * time.Minute}
}

// Enforcer wraps a Casbin SyncedEnforcer with a decision cache.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// NewEnforcer loads the model and policy.
func NewEnforcer(cfg *Config) (*Enforcer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{enforcer: enforcer}
	if cfg.CacheTTL > 0 {
		e.cache = newDecisionCache(cfg.CacheTTL)
	}
	return e, nil
}

func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		rule := parts[1:]
		switch parts[0] {
		case "p":
			if len(rule) >= 3 {
				if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
					return fmt.Errorf("failed to add policy %v: %w", rule, err)
				}
			}
		case "g":
			if len(rule) >= 2 {
				if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
					return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
				}
			}
		}
	}
	return nil
}

// Enforce checks whether subject may perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(subject, object, action); ok {
			return allowed, nil
		}
	}
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.cache != nil {
		e.cache.set(subject, object, action, allowed)
	}
	metrics.RecordAuthzDecision(allowed)
	return allowed, nil
}

// Can reports whether role holds capability. Errors deny.
func (e *Enforcer) Can(role, capability string) bool {
	if role == "" || capability == "" {
		return false
	}
	allowed, err := e.Enforce(role, capability, ActionUse)
	if err != nil {
		logging.Error().Err(err).Str("role", role).Str("capability", capability).Msg("Capability check failed")
		return false
	}
	return allowed
}

// CanAccess reports whether role may send method to path.
func (e *Enforcer) CanAccess(role, path, method string) bool {
	if role == "" {
		return false
	}
	allowed, err := e.Enforce(role, path, method)
	if err != nil {
		logging.Error().Err(err).Str("role", role).Str("path", path).Msg("Access check failed")
		return false
	}
	return allowed
}

// Capabilities lists the capabilities role holds directly or by
// inheritance, sorted. The admin wildcard is reported as "*".
func (e *Enforcer) Capabilities(role string) []string {
	perms, err := e.enforcer.GetImplicitPermissionsForUser(role)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range perms {
		if len(p) < 3 {
			continue
		}
		obj, act := p[1], p[2]
		if (act == ActionUse || obj == "*") && !strings.HasPrefix(obj, "/") && !seen[obj] {
			seen[obj] = true
			out = append(out, obj)
		}
	}
	sort.Strings(out)
	return out
}

// SetRoleCapabilities adds capability rules for role. A "*" capability
// grants everything.
func (e *Enforcer) SetRoleCapabilities(role string, capabilities []string) error {
	for _, c := range capabilities {
		action := ActionUse
		if c == "*" {
			action = "*"
		}
		if _, err := e.enforcer.AddPolicy(role, c, action); err != nil {
			return fmt.Errorf("failed to add capability %s for %s: %w", c, role, err)
		}
	}
	e.invalidate()
	return nil
}

// RoleStore is the subset of the database the enforcer syncs from.
type RoleStore interface {
	Roles(ctx context.Context) ([]database.RoleRecord, error)
}

// SyncRoles adds the capabilities stored in the roles table. Custom roles
// also inherit the member area rules so they can reach the member pages.
func (e *Enforcer) SyncRoles(ctx context.Context, store RoleStore) error {
	roles, err := store.Roles(ctx)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if err := e.SetRoleCapabilities(r.Name, r.Capabilities); err != nil {
			return err
		}
		if r.MemberDashboardAccess && r.Name != models.RoleMember && r.Name != models.RoleAdmin {
			if _, err := e.enforcer.AddGroupingPolicy(r.Name, models.RoleMember); err != nil {
				return fmt.Errorf("failed to link role %s: %w", r.Name, err)
			}
		}
	}
	e.invalidate()
	logging.Debug().Int("roles", len(roles)).Msg("Synced role capabilities")
	return nil
}

// Policy returns every p rule.
func (e *Enforcer) Policy() [][]string {
	//nolint:errcheck // only fails on a nil model
	p, _ := e.enforcer.GetPolicy()
	return p
}

func (e *Enforcer) invalidate() {
	if e.cache != nil {
		e.cache.clear()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
