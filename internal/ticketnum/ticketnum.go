// Package ticketnum содержит чистую арифметику нумерации билетов.
package ticketnum

import (
	"fmt"
	"strconv"
	"strings"
)

// Next вычисляет следующий номер билета по последнему выданному.
// При непустом leading префикс отрезается от last, остаток разбирается как
// целое, увеличивается на единицу и префикс возвращается на место.
// Ошибка разбора означает повреждённый или неверно настроенный счётчик и
// должна всплыть наружу, а не приводить к тихому сбросу нумерации.
func Next(last, leading string) (string, error) {
	digits := last
	if leading != "" {
		if !strings.HasPrefix(last, leading) {
			return "", fmt.Errorf("last ticket number %q does not start with configured leading %q", last, leading)
		}
		digits = strings.TrimPrefix(last, leading)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse ticket number %q: %w", last, err)
	}

	return leading + strconv.FormatInt(n+1, 10), nil
}
