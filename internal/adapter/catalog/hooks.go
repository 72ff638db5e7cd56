package catalog

import (
	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

const validationField = "NGSI Data"

// BeforeCreate prepares a registry resource for storage by serialising its
// entity list into flat extras. Other formats are left alone.
func BeforeCreate(resource *domain.Resource) error {
	return serialize(resource)
}

// BeforeUpdate behaves like BeforeCreate. Stale entity keys carried over from
// current are dropped so removed rows don't come back.
func BeforeUpdate(current, resource *domain.Resource) error {
	if current != nil && resource.Extras == nil && current.Extras != nil {
		resource.Extras = make(map[string]string, len(current.Extras))
		for k, v := range current.Extras {
			resource.Extras[k] = v
		}
	}
	return serialize(resource)
}

// BeforeShow restores the entity list from the flat keys, which are kept
func BeforeShow(resource *domain.Resource) {
	resource.Entity = Unflatten(resource.Extras)
}

func serialize(resource *domain.Resource) error {
	if !resource.IsRegistry() {
		return nil
	}

	if len(resource.Entity) == 0 {
		return domain.NewValidationError(validationField, constants.MsgMissingEntity)
	}

	if resource.Extras == nil {
		resource.Extras = make(map[string]string)
	}
	RemoveSerialized(resource.Extras)
	Flatten(resource.Entity, resource.Extras)
	resource.Entity = nil

	return nil
}
