package models

// ResourceRecord is one answer, authority, or additional record in
// presentation form.
type ResourceRecord struct {
	Name string `json:"name"`
	TTL  uint32 `json:"ttl"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// ResolveResponse is the result of a lookup.
type ResolveResponse struct {
	Name          string           `json:"name"`
	Type          string           `json:"type"`
	RCode         int              `json:"rcode"`
	Authoritative bool             `json:"authoritative"`
	Truncated     bool             `json:"truncated"`
	Answers       []ResourceRecord `json:"answers"`
	Authorities   []ResourceRecord `json:"authorities,omitempty"`
	Additionals   []ResourceRecord `json:"additionals,omitempty"`
}
