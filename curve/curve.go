// Package curve maps cumulative experience to levels.
//
// The curve is the classic quadratic levels curve:
// level L costs 5L² + 50L + 100 experience, so cost grows without bound and
// every non-negative total maps to exactly one level.
package curve

// Cost returns the experience required to advance from level to level+1.
// It is strictly increasing for level >= 0.
func Cost(level int) int64 {
	l := int64(level)
	return 5*l*l + 50*l + 100
}

// Level returns the level reached with total cumulative experience.
// Negative totals clamp to level 0; callers are expected to never pass
// them, but a transiently negative cached value must not panic here.
func Level(total int64) int {
	if total < 0 {
		return 0
	}

	level := 0
	for total >= Cost(level) {
		total -= Cost(level)
		level++
	}
	return level
}

// Progress returns the current level, the experience spent inside that
// level, and the completion percentage toward the next level. The
// percentage is display-only.
func Progress(total int64) (level int, used int64, pct float64) {
	level = Level(total)

	if total < 0 {
		total = 0
	}
	used = total
	for i := 0; i < level; i++ {
		used -= Cost(i)
	}

	pct = float64(used) / float64(Cost(level)) * 100
	return level, used, pct
}
