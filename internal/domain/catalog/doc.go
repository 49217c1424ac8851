// Package catalog turns raw source product payloads into canonical,
// order-independent values and computes the fingerprints used to detect
// "nothing to replicate".
//
// Key concepts:
//   - Payload: the raw source document (tags as string or array, images or media)
//   - Product / Variant: canonical values the diff engine works on
//   - Variant key: "color=red|size=m", case and whitespace insensitive
//   - Fingerprints: "sha1:<hex>" over images, options, variant economics, quantity
package catalog
