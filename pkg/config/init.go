package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const sampleConfig = `# attrsync Configuration File
#
# Environment variables override every key: ATTRSYNC_<SECTION>_<KEY>,
# for example ATTRSYNC_LOGGING_LEVEL=DEBUG.

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text, json
  output: stderr     # stdout, stderr or a file path

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

metrics:
  enabled: false
  port: 9090

# Catalog source: "database" reads resources, schemas and password policies
# from the database below; "file" reads them from catalog.path.
catalog:
  source: database
  # path: /etc/attrsync/catalog.yaml

database:
  type: sqlite
  sqlite:
    path: %s

cache:
  backend: memory    # memory, badger
  ttl: 5m
  size: 10000
  # path: /var/lib/attrsync/virattr   # badger only; empty runs in memory

expression:
  cache_size: 512

password:
  fallback_length: 16

# Gateways per resource key.
connectors: {}
#  ldap:
#    type: ldap
#    ldap:
#      url: ldap://localhost:389
#      bind_dn: cn=admin,dc=example,dc=com
#      bind_password: secret
#      base_dn: ou=people,dc=example,dc=com
#      uid_attribute: uid
`

// InitConfig writes a sample configuration file at the default location and
// returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	dbPath := filepath.ToSlash(filepath.Join(filepath.Dir(path), "attrsync.db"))
	content := fmt.Sprintf(sampleConfig, dbPath)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
