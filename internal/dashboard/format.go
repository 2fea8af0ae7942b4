package dashboard

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tphakala/birdnet-dashboard/internal/logger"
)

// DefaultLocale is used when no locale or an invalid one is configured
const DefaultLocale = "pt-BR"

// numberFormat prints counts and percentages with locale grouping and
// decimal separators.
type numberFormat struct {
	p *message.Printer
}

func newNumberFormat(locale string) numberFormat {
	tag, err := language.Parse(locale)
	if err != nil {
		GetLogger().Debug("invalid dashboard locale, using default",
			logger.String("locale", locale))
		tag = language.MustParse(DefaultLocale)
	}
	return numberFormat{p: message.NewPrinter(tag)}
}

// Int formats an integer with thousands separators
func (f numberFormat) Int(n int) string {
	return f.p.Sprintf("%d", n)
}

// Percent formats a [0,1] ratio with two decimals, or "-" for NaN
func (f numberFormat) Percent(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "-"
	}
	return f.p.Sprintf("%.2f%%", ratio*100)
}
