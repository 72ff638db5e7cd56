package domain

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// QueryEntity is one entry of the broker query "entities" list. Exactly one of
// id or idPattern is emitted, depending on Pattern.
type QueryEntity struct {
	ID      string
	Type    string
	Pattern bool
}

func (q QueryEntity) MarshalJSON() ([]byte, error) {
	if q.Pattern {
		return json.Marshal(struct {
			IDPattern string `json:"idPattern"`
			Type      string `json:"type"`
		}{q.ID, q.Type})
	}
	return json.Marshal(struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}{q.ID, q.Type})
}

// QueryBody is the NGSI v2 op/query body built from a registry resource
type QueryBody struct {
	Entities   []QueryEntity     `json:"entities"`
	Attrs      []string          `json:"attrs"`
	Expression map[string]string `json:"expression,omitempty"`
}
