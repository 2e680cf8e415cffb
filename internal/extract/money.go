package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ianpcook/agent-crm/internal/model"
)

const currencyUSD = "USD"

// amount is a number with optional thousands separators and decimals.
const amount = `((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`

// moneyPatterns are evaluated in this priority order, each over the whole
// text. A numeral may satisfy more than one pattern; nothing is deduplicated
// across patterns.
var moneyPatterns = []struct {
	re         *regexp.Regexp
	multiplier float64
}{
	{regexp.MustCompile(`\$` + amount + `[ \t]?[kK]\b`), 1_000},
	{regexp.MustCompile(`\$` + amount + `[ \t]?[mM]\b`), 1_000_000},
	{regexp.MustCompile(`\$` + amount), 1},
	{regexp.MustCompile(`(?i)\b` + amount + `[ \t]*(?:dollars|usd)\b`), 1},
}

// ExtractMoney returns currency mentions in pattern-priority, then textual,
// order. The first element is the primary deal value signal.
func ExtractMoney(text string) []model.MoneyAmount {
	out := make([]model.MoneyAmount, 0)
	for _, p := range moneyPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			out = append(out, model.MoneyAmount{
				Raw:      m[0],
				Value:    math.Round(v*p.multiplier*100) / 100,
				Currency: currencyUSD,
			})
		}
	}
	return out
}
