package config

// builtinConfig returns the built-in defaults: the shipped routing tables
// and per-capability probe deadlines. The YAML file overlays these.
func builtinConfig() *fileConfig {
	return &fileConfig{
		Oracle: OracleConfig{
			Model:       "gpt-4o",
			Temperature: 0.1,
		},
		Routing: RoutingTables{
			Intents: []RoutingPattern{
				{Pattern: `(?i)\bnot\s+track`, Tag: "tracking_issue", Weight: 0.5},
				{Pattern: `(?i)\bno\s+(tracking|location|position|updates?|checkcalls?)\b`, Tag: "tracking_issue", Weight: 0.5},
				{Pattern: `(?i)tracking\s+(stopped|stale|missing|broken)`, Tag: "tracking_issue", Weight: 0.5},
				{Pattern: `(?i)\b(callbacks?|webhooks?)\s+(failing|not\s+firing|missing)`, Tag: "tracking_issue", Weight: 0.4},
				{Pattern: `(?i)\bstopped\s+updating\b`, Tag: "tracking_issue", Weight: 0.4},
				{Pattern: `(?i)(cannot|can't|unable\s+to)\s+find\s+(the\s+)?load`, Tag: "tracking_issue", Weight: 0.4},
				{Pattern: `(?i)load\s+(creation|not\s+created|failed\s+to\s+create)`, Tag: "load_creation", Weight: 0.5},
				{Pattern: `(?i)\bedi\s*204\b`, Tag: "load_creation", Weight: 0.4},
				{Pattern: `(?i)(wrong|incorrect|bad)\s+(location|status|data|stop)`, Tag: "data_quality", Weight: 0.5},
				{Pattern: `(?i)\bduplicate\s+loads?\b`, Tag: "data_quality", Weight: 0.4},
				{Pattern: `(?i)\b(invoice|billing|charge|detention|accessorial)\b`, Tag: "billing", Weight: 0.5},
			},
			Domains: []RoutingPattern{
				{Pattern: `(?i)\b(truck(load)?|driver|eld|otr|ground|\btl\b|ltl|dispatch)\b`, Tag: "over-the-road", Weight: 0.5},
				{Pattern: `(?i)\b(ocean|vessel|container|booking|steamship|port\s+of|demurrage)\b`, Tag: "ocean", Weight: 0.5},
				{Pattern: `(?i)\b(drayage|dray|chassis|rail\s+ramp|intermodal)\b`, Tag: "drayage", Weight: 0.5},
				{Pattern: `(?i)\b(air\s*freight|awb|airway\s+bill|flight)\b`, Tag: "air", Weight: 0.5},
			},
		},
		ProbeDeadlinesMS: map[string]int{
			"platform-load-lookup-by-id":     10000,
			"platform-load-lookup-by-number": 10000,
			"warehouse-load-validation":      30000,
			"warehouse-company-permalink":    30000,
			"network-relationship":           10000,
			"carrier-portal-scrape-history":  20000,
			"webhook-delivery-history":       20000,
			"structured-log-search":          120000,
			"kv-doc-search":                  30000,
		},
	}
}
