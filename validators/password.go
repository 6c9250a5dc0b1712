package validators

import (
	"regexp"
	"unicode/utf8"
)

const (
	StrengthNone = iota
	StrengthWeak
	StrengthFair
	StrengthGood
	StrengthStrong
	StrengthVeryStrong
)

const shortPasswordFeedback = "Password should be at least 8 characters"

var (
	upperRe = regexp.MustCompile(`[A-Z]`)
	lowerRe = regexp.MustCompile(`[a-z]`)
	digitRe = regexp.MustCompile(`[0-9]`)
	otherRe = regexp.MustCompile(`[^A-Za-z0-9]`)
)

var strengthLabels = [...]string{"", "Weak", "Fair", "Good", "Strong", "Very strong"}

type Strength struct {
	Score    int    `json:"score"`
	Label    string `json:"label"`
	Feedback string `json:"feedback"`
}

// PasswordStrength scores one point each for a length of at least 8, an
// uppercase letter, a lowercase letter, a digit and any other character.
func PasswordStrength(password string) Strength {
	if password == "" {
		return Strength{}
	}

	var s Strength
	if utf8.RuneCountInString(password) >= 8 {
		s.Score++
	}
	for _, re := range []*regexp.Regexp{upperRe, lowerRe, digitRe, otherRe} {
		if re.MatchString(password) {
			s.Score++
		}
	}
	s.Label = strengthLabels[s.Score]
	if utf8.RuneCountInString(password) < 8 {
		s.Feedback = shortPasswordFeedback
	} else {
		s.Feedback = s.Label
	}
	return s
}
