package output

import "fmt"

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatRate(v float64, unit string) string {
	return fmt.Sprintf("%.2f %s", v, unit)
}
