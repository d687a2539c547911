package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/planwise/planwise-cli/internal/model"
)

// LoadFieldsFromFile reads field definitions from a JSON or YAML file
// (extension-detected) and returns an indexed registry. Used to override the
// builtin catalog when the backend's field set runs ahead of a release.
func LoadFieldsFromFile(path string) (*model.FieldRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read fields fixture")
	}

	var fields []model.FieldDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, eris.Wrap(err, "registry: unmarshal yaml fields fixture")
		}
	default:
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, eris.Wrap(err, "registry: unmarshal json fields fixture")
		}
	}

	return model.NewFieldRegistry(fields)
}

// Load returns the registry from path when set, otherwise the builtin catalog.
func Load(path string) (*model.FieldRegistry, error) {
	if path == "" {
		return Builtin()
	}
	return LoadFieldsFromFile(path)
}
