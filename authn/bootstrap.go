package authn

import (
	"context"

	"github.com/NVIDIA/storegate/cmn"
)

// Bootstrapper decides whether a presented bootstrap key may be used for
// the create-principal route: before any principal exists, or after all
// principals have since been deleted (recovery).
type Bootstrapper struct {
	registry        *Registry
	bootstrapAPIKey string
}

func NewBootstrapper(registry *Registry, bootstrapAPIKey string) *Bootstrapper {
	return &Bootstrapper{registry: registry, bootstrapAPIKey: bootstrapAPIKey}
}

// Allow reports whether secret is the configured bootstrap key and zero
// active principals currently exist. It does not check the target
// route; callers must restrict this check to create-principal.
func (b *Bootstrapper) Allow(ctx context.Context, secret string) (bool, error) {
	if b.bootstrapAPIKey == "" || secret != b.bootstrapAPIKey {
		return false, nil
	}
	principals, err := b.registry.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range principals {
		if p.Active {
			return false, nil
		}
	}
	return true, nil
}

// IsBootstrapSecret reports whether secret matches the configured
// bootstrap key at all, independent of the zero-principals condition;
// used to distinguish AuthBootstrapMisuse (right key, wrong route/state)
// from AuthUnknown (key matches no principal and isn't the bootstrap key).
func (b *Bootstrapper) IsBootstrapSecret(secret string) bool {
	return b.bootstrapAPIKey != "" && secret == b.bootstrapAPIKey
}

// RouteCreatePrincipal is the only route the bootstrap key may ever
// authorize.
const RouteCreatePrincipal = cmn.RoutePrincipal + "create"
