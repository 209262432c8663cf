package models

import "sort"

// Category is the closed vocabulary for root-cause classes.
// Oracle output naming anything outside this set is mapped to CategoryUnknown.
type Category string

const (
	CategoryNetworkRelationshipMissing  Category = "network_relationship_missing"
	CategoryNetworkRelationshipInactive Category = "network_relationship_inactive"
	CategoryCarrierConfigMissing        Category = "carrier_config_missing"
	CategoryCarrierPortalScrapeError    Category = "carrier_portal_scrape_error"
	CategoryCarrierPortalDown           Category = "carrier_portal_down"
	CategoryCarrierDataIncorrect        Category = "carrier_data_incorrect"
	CategoryCarrierFileProcessingError  Category = "carrier_file_processing_error"
	CategoryCarrierFileMalformed        Category = "carrier_file_malformed"
	CategoryTrackingMethodNotEnabled    Category = "tracking_method_not_enabled"
	CategorySubscriptionInactive        Category = "subscription_inactive"
	CategoryIdentifierMismatch          Category = "identifier_mismatch"
	CategoryAssetAssignmentFailure      Category = "asset_assignment_failure"
	CategoryLocationProcessingError     Category = "location_processing_error"
	CategoryLocationValidationRejected  Category = "location_validation_rejected"
	CategoryFileIngestionError          Category = "file_ingestion_error"
	CategoryDataMappingError            Category = "data_mapping_error"
	CategoryGeocodingFailure            Category = "geocoding_failure"
	CategoryValidationError             Category = "validation_error"
	CategoryDuplicateLoad               Category = "duplicate_load"
	CategoryLoadNotFound                Category = "load_not_found"
	CategoryLoadDeleted                 Category = "load_deleted"
	CategorySystemProcessingError       Category = "system_processing_error"
	CategoryUnknown                     Category = "unknown"
)

// allCategories indexes the closed set for O(1) validation.
var allCategories = map[Category]bool{
	CategoryNetworkRelationshipMissing:  true,
	CategoryNetworkRelationshipInactive: true,
	CategoryCarrierConfigMissing:        true,
	CategoryCarrierPortalScrapeError:    true,
	CategoryCarrierPortalDown:           true,
	CategoryCarrierDataIncorrect:        true,
	CategoryCarrierFileProcessingError:  true,
	CategoryCarrierFileMalformed:        true,
	CategoryTrackingMethodNotEnabled:    true,
	CategorySubscriptionInactive:        true,
	CategoryIdentifierMismatch:          true,
	CategoryAssetAssignmentFailure:      true,
	CategoryLocationProcessingError:     true,
	CategoryLocationValidationRejected:  true,
	CategoryFileIngestionError:          true,
	CategoryDataMappingError:            true,
	CategoryGeocodingFailure:            true,
	CategoryValidationError:             true,
	CategoryDuplicateLoad:               true,
	CategoryLoadNotFound:                true,
	CategoryLoadDeleted:                 true,
	CategorySystemProcessingError:       true,
	CategoryUnknown:                     true,
}

// Categories returns the closed set sorted by name.
func Categories() []Category {
	out := make([]Category, 0, len(allCategories))
	for c := range allCategories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	return allCategories[c]
}

// ParseCategory maps a raw string to the closed set.
// Anything unrecognized becomes CategoryUnknown — unknown variants are
// rejected explicitly, never passed through.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return CategoryUnknown
}
