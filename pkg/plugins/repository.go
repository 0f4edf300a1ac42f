package plugins

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RepositorySpec pairs a published plugin archive with the raw descriptor XML
// it was packed with. Accumulated during non-bundled packaging, serialized as
// the custom-plugin-repository manifest.
type RepositorySpec struct {
	// ZipPath is the destination archive path.
	ZipPath string
	// DescriptorXML is the plugin.xml content as packed.
	DescriptorXML []byte
}

// descriptorIdentity is the subset of a plugin descriptor the repository
// manifest needs.
type descriptorIdentity struct {
	ID      string `xml:"id"`
	Name    string `xml:"name"`
	Version string `xml:"version"`
}

type repositoryPlugin struct {
	XMLName xml.Name `xml:"plugin"`
	ID      string   `xml:"id,attr"`
	URL     string   `xml:"url,attr"`
	Version string   `xml:"version,attr"`
}

type repositoryManifest struct {
	XMLName xml.Name           `xml:"plugins"`
	Plugins []repositoryPlugin `xml:"plugin"`
}

// WriteRepository serializes the repository manifest for the given specs. The
// manifest is ordered by plugin id for reproducibility.
func WriteRepository(path string, specs []RepositorySpec) error {
	manifest := repositoryManifest{}
	for _, spec := range specs {
		var identity descriptorIdentity
		if err := xml.Unmarshal(spec.DescriptorXML, &identity); err != nil {
			return fmt.Errorf("parsing descriptor for %s: %w", filepath.Base(spec.ZipPath), err)
		}
		id := identity.ID
		if id == "" {
			id = identity.Name
		}
		manifest.Plugins = append(manifest.Plugins, repositoryPlugin{
			ID:      id,
			URL:     filepath.Base(spec.ZipPath),
			Version: identity.Version,
		})
	}
	sort.Slice(manifest.Plugins, func(i, j int) bool {
		return manifest.Plugins[i].ID < manifest.Plugins[j].ID
	})

	data, err := xml.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding repository manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("writing repository manifest: %w", err)
	}
	return nil
}
