// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package content

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tomtom215/inkwell/internal/database"
)

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "Ä", "ae", "Ö", "oe", "Ü", "ue", "ß", "ss")

// Slugify lowercases s, spells out German umlauts, folds other accented
// letters to ASCII and joins the remaining alphanumeric runs with "-".
// "Über Café!" becomes "ueber-cafe".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), umlauts.Replace(s))
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug returns base, or base-1, base-2 ... so that no other row of
// table than excludeID uses it. table must be pages or posts.
func uniqueSlug(ctx context.Context, db *database.DB, table, base string, excludeID int64) (string, error) {
	if base == "" {
		base = strings.TrimSuffix(table, "s")
	}
	slug := base
	for n := 1; ; n++ {
		var count int
		err := db.Conn().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE slug = ? AND id <> ?`, slug, excludeID).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %s: %w", slug, err)
		}
		if count == 0 {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}
