package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// updateVersioned applies values to the row with the given id and bumps its
// version. When expected is non-nil only the row at that version is written,
// and a mismatch is reported as ErrConflict.
func updateVersioned(ctx context.Context, tx *gorm.DB, mdl interface{}, id string, expected *int64, values map[string]interface{}) error {
	values["version"] = gorm.Expr("version + 1")

	q := tx.WithContext(ctx).Model(mdl).Where("id = ?", id)
	if expected != nil {
		q = q.Where("version = ?", *expected)
	}
	res := q.Updates(values)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.WithContext(ctx).Model(mdl).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// deleteByID removes one row and reports ErrNotFound when nothing matched.
func deleteByID(ctx context.Context, tx *gorm.DB, mdl interface{}, id string) error {
	res := tx.WithContext(ctx).Where("id = ?", id).Delete(mdl)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// likePattern builds a case-insensitive substring pattern. LIKE
// metacharacters are escaped with '!', which reads the same in MySQL and SQLite.
func likePattern(q string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// normalizeNames trims names and drops blanks and repeats, keeping the
// first occurrence of each.
func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
