package processor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PayeeEntry maps a processor source to the payee name the ledger uses for
// that vendor.
type PayeeEntry struct {
	Source string `yaml:"source"`
	Payee  string `yaml:"payee"`
}

// payeeConfig is the YAML mapping file shape.
type payeeConfig struct {
	Payees []PayeeEntry `yaml:"payees"`
}

// PayeeMapping resolves the expected payee name for each vendor processor.
// The ledger's payee strings occasionally drift from the vendor's own name,
// so the defaults can be overridden from a YAML file.
type PayeeMapping struct {
	payees map[string]string
}

// DefaultPayeeMapping returns the built-in source to payee mapping.
func DefaultPayeeMapping() *PayeeMapping {
	return &PayeeMapping{payees: map[string]string{
		"amazon":     "Amazon",
		"lyft-ride":  "Lyft",
		"lyft-bike":  "Lyft Bike",
		"apple":      "Apple",
		"cloudflare": "Cloudflare",
	}}
}

// LoadPayeeMapping reads overrides from a YAML configuration file and merges
// them over the defaults.
func LoadPayeeMapping(configPath string) (*PayeeMapping, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read payee mapping file: %w", err)
	}

	var config payeeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse payee mapping YAML: %w", err)
	}

	mapping := DefaultPayeeMapping()
	for _, entry := range config.Payees {
		mapping.payees[entry.Source] = entry.Payee
	}

	return mapping, nil
}

// Payee returns the ledger payee name for a processor source. Unknown
// sources fall back to the source itself.
func (m *PayeeMapping) Payee(source string) string {
	if payee, ok := m.payees[source]; ok {
		return payee
	}
	return source
}
