package billing

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/prohelper/prohelper-web/internal/prohelper"
)

// Overview is everything the module management page needs in one fetch.
type Overview struct {
	Catalog  []prohelper.Module
	Active   []prohelper.ActivatedModule
	Expiring []prohelper.ActivatedModule
	Balance  *prohelper.Balance
	Info     *prohelper.BillingInfo
}

// ActivationResult is the outcome of a module activation attempt.
type ActivationResult struct {
	Activated bool
	// InsufficientFunds is set when the platform rejected the activation
	// because the balance does not cover the module price.
	InsufficientFunds bool
	Message           string
}

// Modules drives the module catalog and activation state of one session.
type Modules struct {
	client *prohelper.Client
	token  TokenFunc

	mu     sync.RWMutex
	active []prohelper.ActivatedModule
}

// NewModules creates a modules service.
func NewModules(client *prohelper.Client, token TokenFunc) *Modules {
	return &Modules{
		client: client,
		token:  token,
	}
}

// Fetch loads catalog, activations, expirations, balance and billing info
// in parallel. One failing leg fails the whole fetch, a partial overview is
// worse than an error page.
func (m *Modules) Fetch(ctx context.Context) (*Overview, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	var overview Overview

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		catalog, err := m.client.Modules(groupCtx, token)
		if err != nil {
			return errors.Wrap(err, "failed to fetch module catalog")
		}

		overview.Catalog = catalog

		return nil
	})

	group.Go(func() error {
		active, err := m.client.ActiveModules(groupCtx, token)
		if err != nil {
			return errors.Wrap(err, "failed to fetch active modules")
		}

		overview.Active = active

		return nil
	})

	group.Go(func() error {
		expiring, err := m.client.ExpiringModules(groupCtx, token)
		if err != nil {
			return errors.Wrap(err, "failed to fetch expiring modules")
		}

		overview.Expiring = expiring

		return nil
	})

	group.Go(func() error {
		balance, err := m.client.Balance(groupCtx, token)
		if err != nil {
			return errors.Wrap(err, "failed to fetch balance")
		}

		overview.Balance = balance

		return nil
	})

	group.Go(func() error {
		info, err := m.client.BillingInfo(groupCtx, token)
		if err != nil {
			return errors.Wrap(err, "failed to fetch billing info")
		}

		overview.Info = info

		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.active = overview.Active
	m.mu.Unlock()

	return &overview, nil
}

func normalizeSlug(slug string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(slug)), "_", "-")
}

// IsActive reports whether a module is active. The activation records are
// authoritative; the catalog flag only serves as a fallback for modules the
// activation endpoint does not list.
func (m *Modules) IsActive(slug string, catalog []prohelper.Module) bool {
	want := normalizeSlug(slug)

	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	for _, record := range active {
		if normalizeSlug(record.Slug) == want {
			return record.Status == prohelper.ModuleActive || record.Status == prohelper.ModuleTrial
		}
	}

	for _, module := range catalog {
		if normalizeSlug(module.Slug) == want {
			return module.IsActive
		}
	}

	return false
}

// Activate activates a module. A rejection for insufficient funds is a
// regular outcome of the page flow, not an error.
func (m *Modules) Activate(ctx context.Context, slug string) (*ActivationResult, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	err = m.client.ActivateModule(ctx, token, slug)

	switch {
	case err == nil:
		return &ActivationResult{Activated: true}, nil
	case errors.Is(err, prohelper.ErrPaymentRequired):
		return &ActivationResult{
			InsufficientFunds: true,
			Message:           "balance does not cover the module price",
		}, nil
	default:
		return nil, err
	}
}

// Deactivate deactivates a module.
func (m *Modules) Deactivate(ctx context.Context, slug string) error {
	token, err := m.token(ctx)
	if err != nil {
		return err
	}

	return m.client.DeactivateModule(ctx, token, slug)
}

// Renew renews a module's paid period.
func (m *Modules) Renew(ctx context.Context, slug string) (*ActivationResult, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	err = m.client.RenewModule(ctx, token, slug)

	switch {
	case err == nil:
		return &ActivationResult{Activated: true}, nil
	case errors.Is(err, prohelper.ErrPaymentRequired):
		return &ActivationResult{
			InsufficientFunds: true,
			Message:           "balance does not cover the renewal",
		}, nil
	default:
		return nil, err
	}
}
