package places

import (
	"fmt"
	"os"
	"sort"

	"github.com/skovsen/tbspread"
	"gopkg.in/yaml.v3"
)

// Any matches every value of a property key.
const Any = "*"

// Tags maps a place tag (home, school, ...) to the feature properties that
// select it: property key -> accepted values.
type Tags map[string]map[string][]string

// LoadTags reads the `tags` section of a YAML file.
func LoadTags(path string) (Tags, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tags file: %w", err)
	}
	var doc struct {
		Tags Tags `yaml:"tags"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing tags file: %v", tbspread.ErrConfiguration, err)
	}
	if err := doc.Tags.Validate(); err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

// Validate requires a home tag and at least one selector per tag.
func (t Tags) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: no tags configured", tbspread.ErrConfiguration)
	}
	if _, ok := t[HomeTag]; !ok {
		return fmt.Errorf("%w: tags must define %q", tbspread.ErrConfiguration, HomeTag)
	}
	for name, sel := range t {
		if len(sel) == 0 {
			return fmt.Errorf("%w: tag %q has no selectors", tbspread.ErrConfiguration, name)
		}
	}
	return nil
}

// names returns the tag names sorted.
func (t Tags) names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// match returns the tags a feature with props belongs to and the matched
// property value of each, used as the building kind.
func (t Tags) match(props map[string]interface{}) map[string]string {
	found := make(map[string]string)
	for _, name := range t.names() {
		sel := t[name]
		keys := make([]string, 0, len(sel))
		for k := range sel {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			v, ok := props[key].(string)
			if !ok {
				continue
			}
			if accepts(sel[key], v) {
				found[name] = v
				break
			}
		}
	}
	return found
}

func accepts(values []string, v string) bool {
	for _, want := range values {
		if want == Any || want == v {
			return true
		}
	}
	return false
}
