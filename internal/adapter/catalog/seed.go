package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// SeedFile is the yaml layout used to preload resources:
//
//	resources:
//	  - id: parking
//	    package_id: smartcity
//	    url: http://orion:1026/
//	    format: fiware-ngsi-registry
//	    entity:
//	      - id: Parking.*
//	        value: OffStreetParking
//	        isPattern: "on"
type SeedFile struct {
	Resources []domain.Resource `yaml:"resources"`
}

func LoadSeed(path string) ([]*domain.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed SeedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	resources := make([]*domain.Resource, 0, len(seed.Resources))
	for i := range seed.Resources {
		if seed.Resources[i].ID == "" {
			return nil, fmt.Errorf("seed file %s: resource %d has no id", path, i)
		}
		resources = append(resources, &seed.Resources[i])
	}
	return resources, nil
}

// Seed creates every resource through the normal hooks, existing ids are overwritten
func (r *Repository) Seed(ctx context.Context, resources []*domain.Resource) (int, error) {
	for _, resource := range resources {
		if _, err := r.Create(ctx, resource); err != nil {
			return 0, fmt.Errorf("seeding resource %s: %w", resource.ID, err)
		}
	}
	return len(resources), nil
}
