// Package sanitizer normalizes car listing input before validation and storage.
//
// All functions are idempotent. Invalid input is dropped (empty string or
// omitted slice element) rather than reported; validation happens afterwards
// on the normalized value.
//
// Normalization includes:
//   - Strings: collapse whitespace, trim leading and trailing spaces
//   - Makes and models: collapsed whitespace, original casing kept
//   - Locations: collapsed whitespace, lowercased for filtering
//   - Features: snake_case keys, "Air Conditioning" becomes "air_conditioning"
//   - Image URLs: https only, lowercase host, tracking parameters removed
//   - Prices: rounded to two decimal places
package sanitizer
