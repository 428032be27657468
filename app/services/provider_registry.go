package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
	"github.com/udyogsetu/messaging-core/utils"
)

// ProviderRegistry holds one adapter per vendor and the country routing
// table. Selection is a pure decision over configuration state; health
// probes never run on the send path.
type ProviderRegistry struct {
	adapters        map[models.ProviderType]MessagingProvider
	defaultProvider models.ProviderType
	mappingRepo     repository.CountryProviderMappingRepository

	mu          sync.RWMutex
	mappings    map[string]*models.CountryProviderMapping
	initialized bool
}

func NewProviderRegistry(cfg *config.ProductionConfig, mappingRepo repository.CountryProviderMappingRepository) *ProviderRegistry {
	return NewProviderRegistryWithAdapters(
		map[models.ProviderType]MessagingProvider{
			models.ProviderMeta:    NewMetaClient(cfg.Meta),
			models.ProviderTwilio:  NewTwilioClient(cfg.Twilio),
			models.ProviderGupshup: NewGupshupClient(cfg.Gupshup),
		},
		models.ProviderType(cfg.Messaging.DefaultProvider),
		mappingRepo,
	)
}

// NewProviderRegistryWithAdapters builds a registry over pre-constructed
// adapters; tests and local setups inject mocks through it.
func NewProviderRegistryWithAdapters(adapters map[models.ProviderType]MessagingProvider, defaultProvider models.ProviderType, mappingRepo repository.CountryProviderMappingRepository) *ProviderRegistry {
	return &ProviderRegistry{
		adapters:        adapters,
		defaultProvider: defaultProvider,
		mappingRepo:     mappingRepo,
		mappings:        make(map[string]*models.CountryProviderMapping),
	}
}

// Initialize loads the country routing table. Calling it twice is a no-op.
func (r *ProviderRegistry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.initialized = true
	r.mu.Unlock()

	return r.LoadMappings(ctx)
}

// LoadMappings refreshes the routing table from the database. On error the
// hardcoded default table is installed so dispatch stays operational.
func (r *ProviderRegistry) LoadMappings(ctx context.Context) error {
	rows, err := r.mappingRepo.ListActive(ctx)
	if err != nil || len(rows) == 0 {
		if err != nil {
			log.Printf("provider registry: mapping load failed, using default table: %v", err)
		}
		r.installMappings(defaultCountryMappings())
		return err
	}

	table := make(map[string]*models.CountryProviderMapping, len(rows))
	for _, row := range rows {
		table[utils.NormalizeCountry(row.Country)] = row
	}
	r.installMappings(table)
	return nil
}

// Reload re-runs LoadMappings; intended for the mapping refresh scheduler
// and the ops reload endpoint.
func (r *ProviderRegistry) Reload(ctx context.Context) error {
	return r.LoadMappings(ctx)
}

func (r *ProviderRegistry) installMappings(table map[string]*models.CountryProviderMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = table
}

// Provider returns the adapter for a vendor type, configured or not.
func (r *ProviderRegistry) Provider(p models.ProviderType) (MessagingProvider, bool) {
	adapter, ok := r.adapters[p]
	return adapter, ok
}

// Providers returns all registered adapters keyed by vendor type.
func (r *ProviderRegistry) Providers() map[models.ProviderType]MessagingProvider {
	out := make(map[models.ProviderType]MessagingProvider, len(r.adapters))
	for k, v := range r.adapters {
		out[k] = v
	}
	return out
}

// MappingForCountry returns the routing row for a country, if one exists.
func (r *ProviderRegistry) MappingForCountry(country string) (*models.CountryProviderMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[utils.NormalizeCountry(country)]
	return m, ok
}

// GetProviderForCountry selects the adapter for a destination country:
//  1. Unknown/unsupported country: the default vendor, if configured.
//  2. Mapped primary vendor, if configured.
//  3. Declared fallback vendor, if configured.
//  4. Default vendor, if configured.
//  5. Otherwise no provider is available and the caller must fail the send.
func (r *ProviderRegistry) GetProviderForCountry(country string) (MessagingProvider, *models.CountryProviderMapping, error) {
	normalized := utils.NormalizeCountry(country)

	mapping, ok := r.MappingForCountry(normalized)
	if !ok || normalized == utils.CountryOther {
		log.Printf("provider registry: no mapping for country %q, using default provider %s", country, r.defaultProvider)
		if adapter := r.configuredAdapter(r.defaultProvider); adapter != nil {
			return adapter, nil, nil
		}
		return nil, nil, fmt.Errorf("no provider available: default provider %s is not configured", r.defaultProvider)
	}

	if adapter := r.configuredAdapter(mapping.PrimaryProvider); adapter != nil {
		return adapter, mapping, nil
	}

	if mapping.FallbackProvider != nil {
		if adapter := r.configuredAdapter(*mapping.FallbackProvider); adapter != nil {
			log.Printf("provider registry: primary %s unconfigured for %s, downgrading to fallback %s",
				mapping.PrimaryProvider, normalized, *mapping.FallbackProvider)
			return adapter, mapping, nil
		}
	}

	if adapter := r.configuredAdapter(r.defaultProvider); adapter != nil {
		log.Printf("provider registry: no configured mapping provider for %s, using default %s", normalized, r.defaultProvider)
		return adapter, mapping, nil
	}

	return nil, nil, fmt.Errorf("no provider available for country %s", normalized)
}

func (r *ProviderRegistry) configuredAdapter(p models.ProviderType) MessagingProvider {
	adapter, ok := r.adapters[p]
	if !ok || !adapter.IsConfigured() {
		return nil
	}
	return adapter
}

// defaultCountryMappings is the compiled-in routing table used when the
// database copy is unavailable.
func defaultCountryMappings() map[string]*models.CountryProviderMapping {
	twilio := models.ProviderTwilio
	gupshup := models.ProviderGupshup
	meta := models.ProviderMeta

	rows := []*models.CountryProviderMapping{
		{Country: "india", PrimaryProvider: models.ProviderGupshup, FallbackProvider: &meta, MonthlyQuota: utils.DefaultMonthlyQuota, IsActive: true},
		{Country: "uae", PrimaryProvider: models.ProviderMeta, FallbackProvider: &twilio, MonthlyQuota: utils.DefaultMonthlyQuota, IsActive: true},
		{Country: "singapore", PrimaryProvider: models.ProviderMeta, FallbackProvider: &twilio, MonthlyQuota: utils.DefaultMonthlyQuota, IsActive: true},
		{Country: "indonesia", PrimaryProvider: models.ProviderGupshup, FallbackProvider: &meta, MonthlyQuota: utils.DefaultMonthlyQuota, IsActive: true},
		{Country: "brazil", PrimaryProvider: models.ProviderTwilio, FallbackProvider: &meta, MonthlyQuota: utils.DefaultMonthlyQuota, IsActive: true},
		{Country: "mexico", PrimaryProvider: models.ProviderTwilio, FallbackProvider: &gupshup, MonthlyQuota: utils.DefaultMonthlyQuota, IsActive: true},
	}

	table := make(map[string]*models.CountryProviderMapping, len(rows))
	for _, row := range rows {
		table[row.Country] = row
	}
	return table
}
