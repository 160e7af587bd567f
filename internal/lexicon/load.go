package lexicon

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadFile reads tables from a YAML file and compiles them. Sections absent
// from the file keep their DefaultTables values.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lexicon: read %s", path)
	}
	return Parse(data)
}

// Parse compiles YAML-encoded tables layered over DefaultTables.
func Parse(data []byte) (*Lexicon, error) {
	var wrapper struct {
		Lexicon Tables `yaml:"lexicon"`
	}
	wrapper.Lexicon = DefaultTables()
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "lexicon: parse")
	}

	lx, err := New(wrapper.Lexicon)
	if err != nil {
		return nil, err
	}
	return lx, nil
}
