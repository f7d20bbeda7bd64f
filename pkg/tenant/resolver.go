package tenant

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// Resolver maps an inbound request's host/origin to a frozen tenant identity,
// caching resolutions to avoid a store round trip per request.
type Resolver struct {
	store   Store
	cache   *cache.TieredCache
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a tenant resolver. ttl bounds the L2 lifetime of a
// cached resolution.
func NewResolver(store Store, tiered *cache.TieredCache, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &Resolver{
		store:   store,
		cache:   tiered,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// ExtractSubdomain pulls a candidate tenant subdomain out of a host header.
// It returns "" (no tenant) for bare IPs, "localhost", and hosts with fewer
// than three dot-separated labels; the ".localhost" suffix is allowed for
// local development. Returning "" is not an error: public routes resolve no
// tenant and the isolation gate decides whether that is acceptable.
func ExtractSubdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}

	// Strip port if present
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}

	labels := strings.Split(host, ".")

	// foo.localhost is the local-development form
	if len(labels) == 2 && labels[1] == "localhost" {
		return labels[0]
	}

	if len(labels) < 3 {
		return ""
	}

	sub := labels[0]
	if sub == "" || sub == "www" {
		return ""
	}
	return sub
}

// SubdomainFromRequest extracts a subdomain from a host header, falling back
// to the origin header's host when the host header yields none.
func SubdomainFromRequest(host, origin string) string {
	if sub := ExtractSubdomain(host); sub != "" {
		return sub
	}
	if origin == "" {
		return ""
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return ExtractSubdomain(parsed.Host)
}

// Resolve maps a subdomain to a frozen tenant identity. It returns
// (nil, nil) when subdomain is empty (no tenant is a valid state), an
// *InvalidError for suspended/inactive/schema-missing tenants, and a plain
// error for store failures, which are hard failures because the tenant store
// is the source of truth.
func (r *Resolver) Resolve(ctx context.Context, subdomain string) (*Identity, error) {
	if subdomain == "" {
		return nil, nil
	}
	identity, err := r.resolve(ctx, subdomain)
	r.recordResolution(identity, err)
	return identity, err
}

func (r *Resolver) resolve(ctx context.Context, subdomain string) (*Identity, error) {
	key := cache.TenantSubdomainKey(subdomain)

	raw, err := r.cache.GetOrSet(ctx, key, r.ttl, func(ctx context.Context) (string, error) {
		rec, err := r.store.GetBySubdomain(ctx, subdomain)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", errTenantNotFound
		}

		identity, err := r.freeze(rec)
		if err != nil {
			return "", err
		}

		data, err := identity.MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("encode tenant identity: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		if err == errTenantNotFound {
			r.logger.WithField("subdomain", subdomain).Debug("no tenant for subdomain")
			return nil, nil
		}
		return nil, err
	}

	identity, err := UnmarshalIdentity([]byte(raw))
	if err != nil {
		// Corrupt cache entry: drop it and retry against the store once.
		r.cache.Delete(ctx, key)
		r.logger.WithError(err).WithField("subdomain", subdomain).Warn("dropping corrupt cached tenant identity")
		return r.resolveUncached(ctx, subdomain)
	}

	return identity, nil
}

// ResolveFromRequest combines subdomain extraction and resolution.
func (r *Resolver) ResolveFromRequest(ctx context.Context, host, origin string) (*Identity, error) {
	return r.Resolve(ctx, SubdomainFromRequest(host, origin))
}

// ResolveByID resolves a tenant by its id, for internal flows that start
// from a token's tenant binding instead of a request host. Semantics match
// Resolve: (nil, nil) for an unknown id, *InvalidError for tenants that may
// not serve requests.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (*Identity, error) {
	if id == "" {
		return nil, nil
	}
	identity, err := r.resolveByID(ctx, id)
	r.recordResolution(identity, err)
	return identity, err
}

func (r *Resolver) resolveByID(ctx context.Context, id string) (*Identity, error) {
	key := cache.TenantIDKey(id)

	raw, err := r.cache.GetOrSet(ctx, key, r.ttl, func(ctx context.Context) (string, error) {
		rec, err := r.store.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", errTenantNotFound
		}

		identity, err := r.freeze(rec)
		if err != nil {
			return "", err
		}

		data, err := identity.MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("encode tenant identity: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		if err == errTenantNotFound {
			return nil, nil
		}
		return nil, err
	}

	identity, err := UnmarshalIdentity([]byte(raw))
	if err != nil {
		r.cache.Delete(ctx, key)
		r.logger.WithError(err).WithField("tenant_id", id).Warn("dropping corrupt cached tenant identity")
		rec, err := r.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		return r.freeze(rec)
	}

	return identity, nil
}

var errTenantNotFound = fmt.Errorf("tenant not found")

// recordResolution counts a finished resolution by outcome. Empty inputs are
// not counted; they never reach a lookup.
func (r *Resolver) recordResolution(identity *Identity, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "resolved"
	switch {
	case err == nil && identity == nil:
		outcome = "no_tenant"
	case IsInvalid(err):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	r.metrics.TenantResolutionsTotal.WithLabelValues(outcome).Inc()
}

func (r *Resolver) resolveUncached(ctx context.Context, subdomain string) (*Identity, error) {
	rec, err := r.store.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return r.freeze(rec)
}

// freeze validates a raw row and constructs the immutable identity.
func (r *Resolver) freeze(rec *Record) (*Identity, error) {
	if !rec.Status.Resolvable() {
		reason := ReasonInactive
		if rec.Status == StatusSuspended {
			reason = ReasonSuspended
		}
		return nil, &InvalidError{Slug: rec.Slug, Reason: reason}
	}

	if !rec.Schema.Valid || rec.Schema.String == "" {
		// Never substitute a default schema.
		return nil, &InvalidError{Slug: rec.Slug, Reason: ReasonSchemaMissing}
	}

	planID := ""
	if rec.PlanID.Valid {
		planID = rec.PlanID.String
	}

	return NewIdentity(rec.ID, rec.Slug, rec.Schema.String, rec.Status, planID)
}

// Invalidate drops a tenant's cached resolution, for administrative paths
// that change a tenant's status, schema, or plan. The branding entry shares
// the tenant's lifecycle, so it is dropped alongside the resolution.
func (r *Resolver) Invalidate(ctx context.Context, subdomain string) {
	r.cache.Delete(ctx, cache.TenantSubdomainKey(subdomain))
	r.cache.Delete(ctx, cache.TenantBrandingKey(subdomain))
}
