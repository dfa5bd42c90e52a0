// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package provider

import (
	"os"

	"gopkg.in/yaml.v3"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// catalogFile mirrors the on-disk provider catalog document.
type catalogFile struct {
	Providers []Descriptor `yaml:"providers"`
}

// LoadCatalog reads a provider catalog YAML file and returns its
// descriptors. Validation happens at Registry load, not here.
func LoadCatalog(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kilnerr.Wrapf(err, kilnerr.CodeConfigLoadReadFailure,
			"reading provider catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses provider catalog YAML bytes.
func ParseCatalog(data []byte) ([]Descriptor, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, kilnerr.Wrap(err, kilnerr.CodeConfigParseInvalidFormat,
			"parsing provider catalog")
	}
	if len(doc.Providers) == 0 {
		return nil, kilnerr.New(kilnerr.CodeConfigParseInvalidFormat,
			"provider catalog has no providers entry")
	}
	return doc.Providers, nil
}
