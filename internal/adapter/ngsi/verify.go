package ngsi

import (
	"fmt"
	"os"
	"strings"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/core/ports"
)

// OSEnvironment reads the real process environment
type OSEnvironment struct{}

func (OSEnvironment) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnvironment is a fixed environment, handy for tests and the cli
type MapEnvironment map[string]string

func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type verifySource struct {
	lookup func() (any, bool)
	name   string
}

// ResolveVerifyPolicy walks the verify sources in precedence order and returns
// the first one that is set:
//
//	CKAN_RIGHT_TIME_CONTEXT_VERIFY_REQUESTS
//	ckan.right_time_context.verify_requests (legacy: ckan.ngsi.verify_requests)
//	CKAN_VERIFY_REQUESTS
//	ckan.verify_requests
//
// Blank strings count as unset. Nothing set means verify.
func ResolveVerifyPolicy(env ports.Environment, settings ports.Settings) (domain.VerifyPolicy, string) {
	for _, src := range verifySources(env, settings) {
		raw, ok := src.lookup()
		if !ok {
			continue
		}
		if policy, ok := parseVerifyValue(raw); ok {
			return policy, src.name
		}
	}
	return domain.VerifyEnabled, "default"
}

func verifySources(env ports.Environment, settings ports.Settings) []verifySource {
	fromEnv := func(key string) verifySource {
		return verifySource{name: key, lookup: func() (any, bool) {
			if env == nil {
				return nil, false
			}
			v, ok := env.LookupEnv(key)
			return v, ok
		}}
	}
	fromSettings := func(key string) verifySource {
		return verifySource{name: key, lookup: func() (any, bool) {
			if settings == nil {
				return nil, false
			}
			v := settings.Get(key)
			return v, v != nil
		}}
	}

	return []verifySource{
		fromEnv(constants.EnvVerifyRequestsExtension),
		fromSettings(constants.ConfigVerifyRequestsExtension),
		fromSettings(constants.ConfigVerifyRequestsLegacy),
		fromEnv(constants.EnvVerifyRequestsGlobal),
		fromSettings(constants.ConfigVerifyRequestsGlobal),
	}
}

// parseVerifyValue returns false when the value should be treated as unset
func parseVerifyValue(raw any) (domain.VerifyPolicy, bool) {
	switch v := raw.(type) {
	case nil:
		return domain.VerifyPolicy{}, false
	case bool:
		return domain.VerifyPolicy{Verify: v}, true
	case string:
		return parseVerifyString(v)
	default:
		// yaml hands us ints for 0/1
		return parseVerifyString(fmt.Sprint(v))
	}
}

func parseVerifyString(v string) (domain.VerifyPolicy, bool) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return domain.VerifyPolicy{}, false
	}

	switch strings.ToLower(trimmed) {
	case "true", "1", "on":
		return domain.VerifyEnabled, true
	case "false", "0", "off":
		return domain.VerifyDisabled, true
	}

	// anything else is a CA bundle path, kept exactly as configured
	return domain.VerifyWithCABundle(v), true
}
