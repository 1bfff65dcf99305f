package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/termmeta/internal/termmeta"
)

// SaveTaxonomies replaces the taxonomies list in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveTaxonomies(configPath string, taxonomies []TaxonomyConfig) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	taxNode := buildTaxonomiesNode(taxonomies)

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "taxonomies"},
						taxNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return fmt.Errorf("parsing config: top level is not a mapping")
		}
		found := false
		for i := 0; i < len(root.Content)-1; i += 2 {
			if root.Content[i].Value == "taxonomies" {
				root.Content[i+1] = taxNode
				found = true
				break
			}
		}
		if !found {
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: "taxonomies"},
				taxNode,
			)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// AddTaxonomy appends a registration to the config file unless the taxonomy is
// already listed. The result is validated before it is written.
func AddTaxonomy(configPath string, existing []TaxonomyConfig, tax TaxonomyConfig) ([]TaxonomyConfig, error) {
	for _, t := range existing {
		if t.Name == tax.Name && (tax.CarrierType == "" || t.effectiveCarrierType() == tax.effectiveCarrierType()) {
			return existing, nil
		}
	}
	updated := append(append([]TaxonomyConfig(nil), existing...), tax)
	if err := ValidateTaxonomies(updated); err != nil {
		return existing, err
	}
	if err := SaveTaxonomies(configPath, updated); err != nil {
		return existing, err
	}
	return updated, nil
}

func buildTaxonomiesNode(taxonomies []TaxonomyConfig) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, tax := range taxonomies {
		item := &yaml.Node{Kind: yaml.MappingNode}
		item.Content = append(item.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "name"},
			&yaml.Node{Kind: yaml.ScalarNode, Value: tax.Name},
		)
		if tax.CarrierType != "" {
			item.Content = append(item.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: "carrier_type"},
				&yaml.Node{Kind: yaml.ScalarNode, Value: tax.CarrierType},
			)
		}
		seq.Content = append(seq.Content, item)
	}
	return seq
}

// writeAtomic writes to a temp file in the same directory, then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".termmeta.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (t TaxonomyConfig) effectiveCarrierType() string {
	if t.CarrierType == "" {
		return termmeta.DefaultCarrierType(t.Name)
	}
	return t.CarrierType
}
