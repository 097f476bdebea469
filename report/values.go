package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var cellReplacer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", ",", ";")

// Stringify converts a column value into its text representation.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(dateLayout)
		}
		return v.Format(dateTimeLayout)
	case time.Duration:
		return formatClock(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(value)
	}
}

// SanitizeCell replaces line terminators with spaces and commas with semicolons.
func SanitizeCell(text string) string {
	return cellReplacer.Replace(text)
}

func formatClock(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
}
