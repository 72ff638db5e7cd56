package catalog

import (
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// Record is the flat key/value form a resource is persisted in
type Record map[string]string

const (
	keyPackageID   = "package_id"
	keyName        = "name"
	keyURL         = "url"
	keyFormat      = "format"
	keyPayload     = "payload"
	keyTenant      = "tenant"
	keyServicePath = "service_path"
	keyAuthType    = "auth_type"
	keyAttrsStr    = "attrs_str"
	keyExpression  = "expression"
)

// ToRecord flattens the typed fields and extras into one map. Empty fields
// other than url are not written, url always is so every stored resource has
// at least one row. The entity list is expected to be serialised already.
func ToRecord(resource *domain.Resource) Record {
	record := make(Record, len(resource.Extras)+10)
	for k, v := range resource.Extras {
		record[k] = v
	}

	set := func(key, value string) {
		if value != "" {
			record[key] = value
		}
	}
	set(keyPackageID, resource.PackageID)
	set(keyName, resource.Name)
	record[keyURL] = resource.URL
	set(keyFormat, resource.Format)
	set(keyPayload, resource.Payload)
	set(keyTenant, resource.Tenant)
	set(keyServicePath, resource.ServicePath)
	set(keyAuthType, string(resource.AuthType))
	set(keyAttrsStr, resource.AttrsStr)
	set(keyExpression, resource.Expression)

	return record
}

// FromRecord is the inverse of ToRecord, unknown keys land in Extras
func FromRecord(id string, record Record) *domain.Resource {
	resource := &domain.Resource{ID: id, Extras: make(map[string]string)}

	for k, v := range record {
		switch k {
		case keyPackageID:
			resource.PackageID = v
		case keyName:
			resource.Name = v
		case keyURL:
			resource.URL = v
		case keyFormat:
			resource.Format = v
		case keyPayload:
			resource.Payload = v
		case keyTenant:
			resource.Tenant = v
		case keyServicePath:
			resource.ServicePath = v
		case keyAuthType:
			resource.AuthType = domain.AuthType(v)
		case keyAttrsStr:
			resource.AttrsStr = v
		case keyExpression:
			resource.Expression = v
		default:
			resource.Extras[k] = v
		}
	}

	return resource
}
