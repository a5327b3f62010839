// Package fixtures holds recorded face landmark fixtures for tests.
package fixtures

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
)

//go:embed testdata/faces/*.json
var facesFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fixture is one landmark upload as a browser face mesh would send it, with
// the transform the default params should produce for it.
type Fixture struct {
	Name     string                   `json:"name"`
	Width    int                      `json:"width"`
	Height   int                      `json:"height"`
	Faces    []detector.FaceLandmarks `json:"faces"`
	Expected *overlay.Transform       `json:"expected,omitempty"`
}

// LoadFaces loads a fixture by name, without the .json extension.
func LoadFaces(name string) (*Fixture, error) {
	data, err := facesFS.ReadFile(path.Join("testdata", "faces", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", name, err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", name, err)
	}

	return &f, nil
}

// Names lists the available fixtures in sorted order.
func Names() ([]string, error) {
	entries, err := facesFS.ReadDir("testdata/faces")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)

	return names, nil
}
