package auth

import (
	"fmt"

	"go-cms-app/internal/logger"

	"github.com/casbin/casbin/v2"
)

// DefaultPolicies grant anonymous callers the login surface and editors the
// page and asset API. Editors inherit everything anonymous callers may do.
var DefaultPolicies = [][]string{
	{RoleAnonymous, "/healthz", "GET"},
	{RoleAnonymous, "/api/auth/register", "POST"},
	{RoleAnonymous, "/api/auth/login", "POST"},
	{RoleAnonymous, "/api/auth/oidc/login", "GET"},
	{RoleAnonymous, "/api/auth/oidc/callback", "GET"},

	{RoleEditor, "/api/auth/me", "GET"},
	{RoleEditor, "/api/auth/logout", "POST"},
	{RoleEditor, "/api/pages", "*"},
	{RoleEditor, "/api/pages/*", "*"},
	{RoleEditor, "/api/assets/*", "*"},
}

// SeedDefaultPolicies adds any missing default policy. It is idempotent and
// runs on every start.
func SeedDefaultPolicies(e casbin.IEnforcer, log logger.Logger) {
	log.Info("Seeding default authorization policies...")
	for _, p := range DefaultPolicies {
		if has, _ := e.HasPolicy(p); !has {
			if _, err := e.AddPolicy(p); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			}
		}
	}
	if has, _ := e.HasRoleForUser(RoleEditor, RoleAnonymous); !has {
		if _, err := e.AddRoleForUser(RoleEditor, RoleAnonymous); err != nil {
			log.Error(err, "Failed to add role 'editor' -> 'anonymous'")
		}
	}
	log.Info("Policy seeding complete.")
}
