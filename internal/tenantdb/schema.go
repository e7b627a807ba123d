package tenantdb

import (
	"errors"
	"fmt"
	"strings"
)

const (
	schemaPrefix = "tenant_"

	// PostgreSQL truncates identifiers longer than 63 bytes, which would
	// silently alias two tenants onto one schema.
	maxIdentifierLen = 63
)

// ErrInvalidTenantID is returned when a tenant identifier cannot be mapped
// to a schema name safely.
var ErrInvalidTenantID = errors.New("invalid tenant id")

// SchemaName derives the canonical schema name for a tenant:
// tenant_<id with "-" replaced by "_">.
//
// The derivation is pure and must be injective: two distinct tenants may
// never derive the same schema name. Identifiers are therefore restricted to
// [a-z0-9-] before substitution - an id already containing "_" (or any other
// character) could alias another tenant's derived name after replacement, so
// such ids are rejected outright rather than sanitized.
func SchemaName(tenantID string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTenantID)
	}

	for _, r := range tenantID {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "", fmt.Errorf("%w: %q contains disallowed character %q", ErrInvalidTenantID, tenantID, r)
		}
	}

	name := schemaPrefix + strings.ReplaceAll(tenantID, "-", "_")
	if len(name) > maxIdentifierLen {
		return "", fmt.Errorf("%w: derived schema name %q exceeds %d bytes", ErrInvalidTenantID, name, maxIdentifierLen)
	}

	return name, nil
}
