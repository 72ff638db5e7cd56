package domain

import "strconv"

// VerifyPolicy is the tri-state TLS verification setting: on, off, or on
// against a specific CA bundle.
type VerifyPolicy struct {
	CABundle string
	Verify   bool
}

var (
	VerifyEnabled  = VerifyPolicy{Verify: true}
	VerifyDisabled = VerifyPolicy{Verify: false}
)

func VerifyWithCABundle(path string) VerifyPolicy {
	return VerifyPolicy{Verify: true, CABundle: path}
}

// String renders the policy the way it was configured: "true", "false" or the bundle path
func (p VerifyPolicy) String() string {
	if p.CABundle != "" {
		return p.CABundle
	}
	return strconv.FormatBool(p.Verify)
}
