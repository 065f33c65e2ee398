package anomaly

import "strconv"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
