package source

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is a YAML stream file:
//
//	elements:
//	  - verified: true
//	    transaction:
//	      transactionId: "1"
//	      productId: com.app.pro
//	      purchaseDate: 1000
type Fixture struct {
	Elements []Message `yaml:"elements"`
}

// LoadFixture reads a YAML stream file. Unknown fields are rejected so a
// typo in a field name fails loudly instead of silently dropping data.
func LoadFixture(path string) (*SliceStream, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	s, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return s, nil
}

// ParseFixture decodes YAML fixture bytes into a finite stream.
func ParseFixture(data []byte) (*SliceStream, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}

	elems := make([]Element, len(f.Elements))
	for i, m := range f.Elements {
		elems[i] = m.Element()
	}
	return FromSlice(elems...), nil
}
