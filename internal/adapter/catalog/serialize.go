package catalog

import (
	"strconv"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// Registry entities are persisted as flat extras because the catalog only
// stores string key/value pairs per resource:
//
//	entity__0__id        = vehicle1
//	entity__0__value     = Vehicle
//	entity__0__isPattern = on        (only when set)
const (
	entityPrefix       = "entity__"
	entityKeyID        = "id"
	entityKeyValue     = "value"
	entityKeyIsPattern = "isPattern"
)

func entityKey(index int, field string) string {
	return entityPrefix + strconv.Itoa(index) + "__" + field
}

// walkSerialized visits entity__0__, entity__1__ ... and stops at the first
// index without an id key.
func walkSerialized(extras map[string]string, visit func(index int)) {
	for index := 0; ; index++ {
		if _, ok := extras[entityKey(index, entityKeyID)]; !ok {
			return
		}
		visit(index)
	}
}

// RemoveSerialized deletes every contiguous entity__N__* key from extras
func RemoveSerialized(extras map[string]string) {
	var indexes []int
	walkSerialized(extras, func(index int) {
		indexes = append(indexes, index)
	})
	for _, index := range indexes {
		delete(extras, entityKey(index, entityKeyID))
		delete(extras, entityKey(index, entityKeyValue))
		delete(extras, entityKey(index, entityKeyIsPattern))
	}
}

// Flatten writes entities as flat keys numbered from zero, skipping the ones
// flagged for deletion. isPattern is only written when "on".
func Flatten(entities []domain.Entity, extras map[string]string) {
	index := 0
	for _, entity := range entities {
		if entity.Deleted() {
			continue
		}
		extras[entityKey(index, entityKeyID)] = entity.ID
		extras[entityKey(index, entityKeyValue)] = entity.Value
		if entity.Pattern() {
			extras[entityKey(index, entityKeyIsPattern)] = constants.CheckboxOn
		}
		index++
	}
}

// Unflatten rebuilds the entity list from flat keys. The result is never nil.
func Unflatten(extras map[string]string) []domain.Entity {
	entities := []domain.Entity{}
	walkSerialized(extras, func(index int) {
		entities = append(entities, domain.Entity{
			ID:        extras[entityKey(index, entityKeyID)],
			Value:     extras[entityKey(index, entityKeyValue)],
			IsPattern: extras[entityKey(index, entityKeyIsPattern)],
		})
	})
	return entities
}
