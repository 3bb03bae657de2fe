package humm

import (
	"context"
	"fmt"

	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/provider"
)

// Factory builds a Service per store from the settings repository.
// Each request or task run gets its own Service, so no client state is shared.
type Factory struct {
	transport  *provider.ProviderHTTPClient
	settings   config.SettingsRepository
	platform   Platform
	opts       ServiceOptions
	clientOpts []ClientOption
}

func NewFactory(transport *provider.ProviderHTTPClient, settings config.SettingsRepository, platform Platform, opts ServiceOptions, clientOpts ...ClientOption) *Factory {
	return &Factory{
		transport:  transport,
		settings:   settings,
		platform:   platform,
		opts:       opts,
		clientOpts: clientOpts,
	}
}

// ForStore loads the store settings and returns a service bound to them.
func (f *Factory) ForStore(ctx context.Context, storeID int64) (*Service, error) {
	settings, err := f.settings.Load(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("load settings of store %d: %w", storeID, err)
	}
	return f.ForSettings(settings), nil
}

// ForSettings returns a service bound to settings.
func (f *Factory) ForSettings(settings config.Settings) *Service {
	return NewService(NewClient(f.transport, settings, f.clientOpts...), f.platform, f.opts)
}

// Settings exposes the repository the factory reads from.
func (f *Factory) Settings() config.SettingsRepository {
	return f.settings
}
