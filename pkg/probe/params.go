package probe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// FillParams builds the parameter bag for one capability from the
// identifier bag, per the descriptor's declarative mapping. It returns the
// filled parameters and the names of required parameters that could not be
// filled (including values that failed type conversion).
//
// The caller converts a non-empty missing list into a skipped finding —
// parameter problems are never crashes.
func FillParams(desc Descriptor, bag *models.IdentifierBag, now time.Time) (map[string]any, []string) {
	params := make(map[string]any, len(desc.Params))
	var missing []string

	for _, spec := range desc.Params {
		value, ok := fillOne(spec, bag, now)
		if ok {
			params[spec.Name] = value
			continue
		}
		if spec.Required {
			missing = append(missing, spec.Name)
		}
	}

	if len(desc.RequireAny) > 0 && !anyPresent(params, desc.RequireAny) {
		missing = append(missing, "one of "+strings.Join(desc.RequireAny, "|"))
	}
	return params, missing
}

func fillOne(spec ParamSpec, bag *models.IdentifierBag, now time.Time) (any, bool) {
	switch spec.Type {
	case ParamStringList:
		// List parameters collect every present source identifier.
		var values []string
		for _, key := range spec.FromKeys {
			if v, ok := bag.Get(key); ok {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			return values, true
		}
	case ParamDate:
		// Time-bounded probes default to the trailing week; the registry
		// clamps into source retention afterwards.
		switch spec.Name {
		case "start":
			return now.AddDate(0, 0, -7), true
		case "end":
			return now, true
		}
	default:
		for _, key := range spec.FromKeys {
			raw, ok := bag.Get(key)
			if !ok {
				continue
			}
			if spec.Type == ParamInt {
				n, err := strconv.Atoi(raw)
				if err != nil {
					// Unparseable numeric identifier counts as missing.
					continue
				}
				return n, true
			}
			return raw, true
		}
	}

	if spec.Default != nil {
		return spec.Default, true
	}
	return nil, false
}

func anyPresent(params map[string]any, names []string) bool {
	for _, n := range names {
		if _, ok := params[n]; ok {
			return true
		}
	}
	return false
}

// clampWindow adjusts start/end date params into the source's retention
// window ending at now. Returns the effective window, or nil when the
// descriptor is untimed or the params carry no dates.
func clampWindow(desc Descriptor, params map[string]any, now time.Time) *models.QueryWindow {
	if desc.RetentionDays <= 0 {
		return nil
	}
	start, sok := params["start"].(time.Time)
	end, eok := params["end"].(time.Time)
	if !sok || !eok {
		return nil
	}

	earliest := now.AddDate(0, 0, -desc.RetentionDays)
	clamped := false
	if start.Before(earliest) {
		start = earliest
		clamped = true
	}
	if end.After(now) {
		end = now
		clamped = true
	}
	if end.Before(start) {
		end = start
		clamped = true
	}
	params["start"] = start
	params["end"] = end
	return &models.QueryWindow{Start: start, End: end, Clamped: clamped}
}

// skipReason formats the reason recorded on a skipped finding.
func skipReason(missing []string) string {
	return fmt.Sprintf("missing required parameters: %s", strings.Join(missing, ", "))
}
