// Package tenant manages tenant-specific configurations and context,
// isolating multi-tenancy logic from the rest of the application.
package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds one tenant's (funnel workspace's) settings.
type Config struct {
	TenantID      string `json:"tenantId"`
	TursoDatabase string `json:"tursoDatabase,omitempty"`
	TursoToken    string `json:"tursoToken,omitempty"`
	SQLitePath    string `json:"sqlitePath"`

	// Ops surface credentials
	OpsPasswordHash string `json:"opsPasswordHash,omitempty"` // bcrypt
	JWTSecret       string `json:"jwtSecret,omitempty"`

	// Funnel-flow collaborator endpoint for business-state reads
	FunnelStateURL string `json:"funnelStateUrl,omitempty"`

	// Recovery email sender identity
	EmailFrom     string `json:"emailFrom,omitempty"`
	EmailFromName string `json:"emailFromName,omitempty"`
}

// TenantRegistry lists all known tenants.
type TenantRegistry struct {
	Tenants map[string]*TenantInfo `json:"tenants"`
}

// TenantInfo is one registry entry.
type TenantInfo struct {
	Status string `json:"status"` // "active", "reserved", "inactive"
}

func configRoot() string {
	if path := os.Getenv("SIGNALSTACK_CONFIG_PATH"); path != "" {
		return path
	}
	return "config"
}

// LoadTenantConfig reads a tenant's config.json, falling back to a
// self-contained SQLite default so a bare checkout still runs.
func LoadTenantConfig(tenantID string) (*Config, error) {
	path := filepath.Join(configRoot(), tenantID, "config.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				TenantID:   tenantID,
				SQLitePath: filepath.Join(configRoot(), tenantID, "signalstack.db"),
			}, nil
		}
		return nil, fmt.Errorf("failed to read tenant config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tenant config %s: %w", path, err)
	}
	cfg.TenantID = tenantID
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(configRoot(), tenantID, "signalstack.db")
	}
	return &cfg, nil
}

// LoadTenantRegistry reads the tenant registry from disk. A missing registry
// is not an error; it simply means no tenants are registered yet.
func LoadTenantRegistry() (*TenantRegistry, error) {
	path := filepath.Join(configRoot(), "tenants.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &TenantRegistry{Tenants: make(map[string]*TenantInfo)}, nil
		}
		return nil, fmt.Errorf("failed to read tenant registry: %w", err)
	}

	var registry TenantRegistry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse tenant registry: %w", err)
	}
	if registry.Tenants == nil {
		registry.Tenants = make(map[string]*TenantInfo)
	}
	return &registry, nil
}

// RegisterTenant adds a tenant to the registry, creating the registry file
// if needed.
func RegisterTenant(tenantID string) error {
	registry, err := LoadTenantRegistry()
	if err != nil {
		return err
	}

	if _, exists := registry.Tenants[tenantID]; exists {
		return nil
	}
	registry.Tenants[tenantID] = &TenantInfo{Status: "reserved"}

	if err := os.MkdirAll(configRoot(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tenant registry: %w", err)
	}

	path := filepath.Join(configRoot(), "tenants.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tenant registry: %w", err)
	}
	return nil
}
