package config

import (
	"context"
	"fmt"
	"os"

	"github.com/badvoidstar/astervoids/pkg/integration"

	"gopkg.in/yaml.v3"
)

// LoadNamingPool loads an operator-supplied override for the session
// Naming Pool's candidate list from a YAML file containing a flat list of
// strings. It is protected by both circuit breaker and retry patterns so a
// transient mount or NFS hiccup at startup doesn't take the whole process
// down.
//
// The function reads the entire file and unmarshals it as a YAML sequence
// of strings. A missing or unreadable file, or content that is not a YAML
// list of strings, is returned as an error once the config executor's
// attempts run out. A file holding an empty list is not an error: the
// returned slice is empty, and callers fall back to the built-in pool.
func LoadNamingPool(filename string) ([]string, error) {
	var names []string
	ctx := context.Background()

	err := integration.ExecuteConfigOperation(ctx, func(ctx context.Context) error {
		data, err := os.ReadFile(filename)
		if err != nil {
			return err
		}

		if err := yaml.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("parsing naming pool override: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}
