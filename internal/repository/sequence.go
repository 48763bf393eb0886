package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	OrderNumberPrefix = "ORD"
	CheckNumberPrefix = "IC"
)

// NextDocumentNumber returns prefix + YYMMDD + a zero-padded daily sequence
// (at least three digits), e.g. ORD260115007. Soft-deleted rows still count so
// a number is never reused. The column's unique index rejects a concurrent
// duplicate; the caller's unit of work then fails and nothing is retried.
func NextDocumentNumber(tx *gorm.DB, table, column, prefix string, day time.Time) (string, error) {
	stem := prefix + day.Format("060102")

	var last string
	err := tx.Table(table).
		Select(column).
		Where(column+" LIKE ?", stem+"%").
		Order("LENGTH(" + column + ") DESC").
		Order(column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if last != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(last, stem))
		if err != nil {
			return "", fmt.Errorf("malformed document number %q: %w", last, err)
		}
		seq = n + 1
	}
	return fmt.Sprintf("%s%03d", stem, seq), nil
}
