// Package subsidy computes the block reward from the monthly subsidy schedule.
package subsidy

import "time"

// Months is the length of the monthly schedule.
const Months = 270

// SompiPerCoin is the number of sompi in one coin.
const SompiPerCoin = 100_000_000

// PremiumReward is the fixed block reward before the schedule cutoff.
const PremiumReward uint64 = 50 * SompiPerCoin

// DefaultCutoff is the date the monthly schedule starts.
var DefaultCutoff = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

// Schedule maps a date onto a block reward.
type Schedule struct {
	Cutoff  time.Time
	Premium uint64
	Monthly []uint64
}

// Default returns the network schedule.
func Default() Schedule {
	return Schedule{
		Cutoff:  DefaultCutoff,
		Premium: PremiumReward,
		Monthly: monthlyTable[:],
	}
}

// Reward returns the block reward in sompi at now. Dates are compared in UTC.
func (s Schedule) Reward(now time.Time) uint64 {
	now = now.UTC()
	cutoff := s.Cutoff.UTC()
	if now.Before(cutoff) {
		return s.Premium
	}
	m := MonthsSince(cutoff, now)
	if m >= len(s.Monthly) {
		return 0
	}
	return s.Monthly[m]
}

// MonthsSince returns the number of whole calendar months from start to now.
// A month is complete once the day of month reaches start's day.
func MonthsSince(start, now time.Time) int {
	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
	if now.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// At returns the reward for month m of the schedule, or 0 past its end.
func (s Schedule) At(m int) uint64 {
	if m < 0 || m >= len(s.Monthly) {
		return 0
	}
	return s.Monthly[m]
}
