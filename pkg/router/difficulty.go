package router

import "strings"

// Difficulty is the routing level assigned to a query.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "EASY"
	case Medium:
		return "MEDIUM"
	case Hard:
		return "HARD"
	}
	return "MEDIUM"
}

// ParseDifficulty maps a classifier reply to a level. Matching is by
// substring, HARD taking priority over MEDIUM over EASY, so replies like
// "HARD。" or "The answer is MEDIUM" resolve correctly. Anything
// unrecognised lands on the balanced tier.
func ParseDifficulty(s string) Difficulty {
	up := strings.ToUpper(s)
	switch {
	case strings.Contains(up, "HARD"):
		return Hard
	case strings.Contains(up, "MEDIUM"):
		return Medium
	case strings.Contains(up, "EASY"):
		return Easy
	}
	return Medium
}
