package model

import (
	"math"
	"time"
)

// WeekStart возвращает полночь понедельника текущей недели в поясе loc
func WeekStart(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)

	// В Go неделя начинается с воскресенья, нам нужен понедельник
	offset := int(now.Weekday()) - 1
	if now.Weekday() == time.Sunday {
		offset = 6
	}

	monday := now.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc)
}

// ApplyRate процент выполненных действий, округленный до целого
func ApplyRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
