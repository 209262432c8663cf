package probe

// ParamType is the declared type of a capability parameter.
type ParamType string

const (
	ParamString     ParamType = "str"
	ParamInt        ParamType = "int"
	ParamDate       ParamType = "date"
	ParamStringList ParamType = "[]str"
)

// ParamSpec declares one capability parameter and how the sub-investigator
// fills it from the identifier bag. FromKeys is tried in order; the first
// present identifier wins. The oracle never supplies concrete values —
// this table is the only way parameters get filled.
type ParamSpec struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
	FromKeys []string  `json:"from_keys,omitempty"`
	Default  any       `json:"default,omitempty"`
}

// Descriptor declares one capability: its owning source, parameters, and
// retention window for time-bounded queries (0 = untimed).
type Descriptor struct {
	Source        string      `json:"source"`
	Capability    string      `json:"capability"`
	Params        []ParamSpec `json:"params"`
	RetentionDays int         `json:"retention_days,omitempty"`

	// RequireAny names parameters of which at least one must be fillable
	// even though none is individually required.
	RequireAny []string `json:"require_any,omitempty"`
}

// Source names.
const (
	SourcePlatform      = "platform"
	SourceWarehouse     = "warehouse"
	SourceNetwork       = "network"
	SourceCarrierPortal = "carrier-portal"
	SourceWebhook       = "webhook"
	SourceLogStore      = "logstore"
	SourceDocSearch     = "docsearch"
)

// Capability names.
const (
	CapLoadLookupByID     = "platform-load-lookup-by-id"
	CapLoadLookupByNumber = "platform-load-lookup-by-number"
	CapLoadValidation     = "warehouse-load-validation"
	CapCompanyPermalink   = "warehouse-company-permalink"
	CapNetworkRelation    = "network-relationship"
	CapScrapeHistory      = "carrier-portal-scrape-history"
	CapWebhookHistory     = "webhook-delivery-history"
	CapLogSearch          = "structured-log-search"
	CapDocSearch          = "kv-doc-search"
)

// Catalog returns the built-in capability descriptors — the authoritative
// parameter-mapping table. The registry exposes exactly these; anything
// else fails fast.
func Catalog() []Descriptor {
	return []Descriptor{
		{
			Source:     SourcePlatform,
			Capability: CapLoadLookupByID,
			Params: []ParamSpec{
				{Name: "tracking_id", Type: ParamInt, Required: true, FromKeys: []string{"tracking_id"}},
			},
		},
		{
			Source:     SourcePlatform,
			Capability: CapLoadLookupByNumber,
			Params: []ParamSpec{
				{Name: "load_number", Type: ParamString, Required: true, FromKeys: []string{"load_number"}},
				{Name: "shipper_id", Type: ParamString, FromKeys: []string{"shipper_id"}},
			},
		},
		{
			Source:     SourceWarehouse,
			Capability: CapLoadValidation,
			Params: []ParamSpec{
				{Name: "tracking_id", Type: ParamInt, FromKeys: []string{"tracking_id"}},
				{Name: "load_number", Type: ParamString, FromKeys: []string{"load_number"}},
			},
			RequireAny: []string{"tracking_id", "load_number"},
		},
		{
			Source:     SourceWarehouse,
			Capability: CapCompanyPermalink,
			Params: []ParamSpec{
				{Name: "company_name", Type: ParamString, Required: true, FromKeys: []string{"shipper_name", "carrier_name"}},
			},
		},
		{
			Source:     SourceNetwork,
			Capability: CapNetworkRelation,
			Params: []ParamSpec{
				{Name: "shipper_id", Type: ParamString, Required: true, FromKeys: []string{"shipper_id"}},
				{Name: "carrier_id", Type: ParamString, Required: true, FromKeys: []string{"carrier_id"}},
			},
		},
		{
			Source:     SourceCarrierPortal,
			Capability: CapScrapeHistory,
			Params: []ParamSpec{
				{Name: "subscription_id", Type: ParamString, Required: true, FromKeys: []string{"subscription_id"}},
				{Name: "window_days", Type: ParamInt, Default: 7},
			},
		},
		{
			Source:     SourceWebhook,
			Capability: CapWebhookHistory,
			Params: []ParamSpec{
				{Name: "tracking_id", Type: ParamString, Required: true, FromKeys: []string{"tracking_id"}},
				{Name: "window_days", Type: ParamInt, Default: 7},
			},
		},
		{
			Source:        SourceLogStore,
			Capability:    CapLogSearch,
			RetentionDays: 30,
			Params: []ParamSpec{
				{Name: "service", Type: ParamString, Required: true, Default: "tracking-pipeline"},
				{Name: "start", Type: ParamDate, Required: true},
				{Name: "end", Type: ParamDate, Required: true},
				{Name: "search", Type: ParamString, Required: true, FromKeys: []string{"tracking_id", "load_number"}},
				{Name: "tracking_id", Type: ParamString, FromKeys: []string{"tracking_id"}},
			},
		},
		{
			Source:     SourceDocSearch,
			Capability: CapDocSearch,
			Params: []ParamSpec{
				{Name: "keywords", Type: ParamStringList, Required: true, FromKeys: []string{"load_number", "carrier_name", "shipper_name", "tracking_id"}},
				{Name: "space", Type: ParamString},
			},
		},
	}
}
