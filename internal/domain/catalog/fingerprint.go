package catalog

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

const fingerprintPrefix = "sha1:"

func fingerprint(s string) string {
	sum := sha1.Sum([]byte(s))
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}

// ImagesFingerprint hashes (canonical src, alt) pairs in position order.
func ImagesFingerprint(images []Image) string {
	pieces := make([]string, len(images))
	for i, img := range images {
		pieces[i] = img.SrcCanon + "|" + img.Alt
	}
	return fingerprint(strings.Join(pieces, "||"))
}

// OptionsFingerprint hashes "name:value1|value2" per option in order. Option
// names are compared case-insensitively; values are not.
func OptionsFingerprint(options []Option) string {
	pieces := make([]string, len(options))
	for i, o := range options {
		pieces[i] = strings.ToLower(o.Name) + ":" + strings.Join(o.Values, "|")
	}
	return fingerprint(strings.Join(pieces, "||"))
}

// VariantFingerprint hashes the economic fields of a variant.
func VariantFingerprint(price, compareAtPrice string, taxable bool, inventoryPolicy string) string {
	return fingerprint(strings.Join([]string{
		price,
		compareAtPrice,
		strconv.FormatBool(taxable),
		inventoryPolicy,
	}, "|"))
}

// InventoryFingerprint hashes the quantity alone. An unknown quantity hashes
// the empty string.
func InventoryFingerprint(qty *int) string {
	if qty == nil {
		return fingerprint("")
	}
	return fingerprint(strconv.Itoa(*qty))
}
