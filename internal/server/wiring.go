package server

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/resource-fetcher/internal/config"
	"github.com/morezero/resource-fetcher/pkg/bootstrap"
	"github.com/morezero/resource-fetcher/pkg/commsutil"
	"github.com/morezero/resource-fetcher/pkg/pgstore"
	"github.com/morezero/resource-fetcher/pkg/registry"
	"github.com/morezero/resource-fetcher/pkg/remote"
)

// buildRegistry registers the document handler and every enabled bootstrap handler. An alias
// is registered as a second remote handler that forwards to its target under the target's name.
func buildRegistry(cfg *config.Config, nc *comms.Conn, store pgstore.Store, resolved *bootstrap.ResolvedBootstrap) (*registry.Registry, error) {
	reg := registry.NewRegistry()

	if cfg.StoreEnabled() && store != nil {
		h, err := pgstore.NewHandler(store, pgstore.Options{Name: cfg.StoreHandler, Version: cfg.StoreVersion})
		if err != nil {
			return nil, fmt.Errorf("%s - document handler: %w", logPrefix, err)
		}
		if err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("%s - register %s: %w", logPrefix, cfg.StoreHandler, err)
		}
		slog.Info(fmt.Sprintf("%s - Registered document handler %s", logPrefix, cfg.StoreHandler))
	}

	if resolved == nil {
		return reg, nil
	}
	names := resolved.Names()
	aliases := resolved.Aliases()
	if nc == nil {
		if len(names)+len(aliases) > 0 {
			slog.Warn(fmt.Sprintf("%s - COMMS disabled, skipping %d bootstrap handlers", logPrefix, len(names)+len(aliases)))
		}
		return reg, nil
	}

	prefix := cfg.HandlerSubjectPrefix
	if prefix == "" {
		prefix = resolved.SubjectPrefix()
	}
	register := func(name string, entry *bootstrap.RemoteHandler, target string) error {
		subject := entry.Subject
		if subject == "" {
			subject = commsutil.BuildHandlerSubject(prefix, target)
		}
		h, err := remote.NewHandler(nc, remote.Options{
			Name:    name,
			Subject: subject,
			Version: entry.Version,
			Timeout: entry.Timeout(),
			Target:  target,
		})
		if err != nil {
			return fmt.Errorf("%s - remote handler %s: %w", logPrefix, name, err)
		}
		if err := reg.Register(h); err != nil {
			return fmt.Errorf("%s - register %s: %w", logPrefix, name, err)
		}
		slog.Info(fmt.Sprintf("%s - Registered remote handler %s -> %s", logPrefix, name, subject))
		return nil
	}

	for _, name := range names {
		if err := register(name, resolved.Get(name), name); err != nil {
			return nil, err
		}
	}
	for _, alias := range aliases {
		if err := register(alias, resolved.Get(alias), resolved.ResolveAlias(alias)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
