package metrics

import "time"

// HealthSnapshot is a point-in-time count of Key Vault engine
// contents, independent of the engine type itself so this package
// never needs to import pkg/keyvault (which imports pkg/state, whose
// Instrumented backend wrapper imports this package — see
// pkg/state/instrumented.go).
type HealthSnapshot struct {
	Vaults         int
	Secrets        int
	DeletedSecrets int
}

// Collector periodically polls a source for the engine's aggregate
// counters and publishes them as gauges: the same poll-and-set
// pattern this package has always used for point-in-time counts,
// retargeted from cluster resources to vault/secret counts.
type Collector struct {
	source func() HealthSnapshot
	stopCh chan struct{}
}

// NewCollector creates a collector that polls source every tick.
func NewCollector(source func() HealthSnapshot) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	h := c.source()
	KeyVaultVaultsTotal.Set(float64(h.Vaults))
	KeyVaultSecretsTotal.Set(float64(h.Secrets))
	KeyVaultDeletedSecretsTotal.Set(float64(h.DeletedSecrets))
}
