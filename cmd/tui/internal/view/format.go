package view

import (
	"context"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

const dbTimeout = 5 * time.Second

// FormatAmount formats a rupiah amount for display.
func FormatAmount(amount int64) string {
	return notify.Rupiah(amount)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Bar renders percent (0-100) as a plain block bar that fits in a table cell.
func Bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
