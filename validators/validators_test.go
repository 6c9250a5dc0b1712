package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		score    int
		label    string
		feedback string
	}{
		{"", 0, "", ""},
		{"abc", 1, "Weak", shortPasswordFeedback},
		{"abcdefgh", 2, "Fair", "Fair"},
		{"Abcdefgh", 3, "Good", "Good"},
		{"Abcdef12", 4, "Strong", "Strong"},
		{"Abcdef12!", 5, "Very strong", "Very strong"},
		{"Ab1!", 4, "Strong", shortPasswordFeedback},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			got := PasswordStrength(tt.password)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.feedback, got.Feedback)
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		want error
	}{
		{
			name: "valid",
			reg:  Registration{FullName: "Ada Obi", Email: "ada@example.com", Password: "Abcdef12", ConfirmPassword: "Abcdef12"},
		},
		{
			name: "mismatch",
			reg:  Registration{Email: "ada@example.com", Password: "Abcdef12", ConfirmPassword: "Abcdef13"},
			want: ErrPasswordMismatch,
		},
		{
			name: "mismatch reported before weakness",
			reg:  Registration{Email: "ada@example.com", Password: "abc", ConfirmPassword: "abd"},
			want: ErrPasswordMismatch,
		},
		{
			name: "weak",
			reg:  Registration{Email: "ada@example.com", Password: "abcdefgh", ConfirmPassword: "abcdefgh"},
			want: ErrWeakPassword,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistration(tt.reg)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateRegistrationEmail(t *testing.T) {
	err := ValidateRegistration(Registration{Email: "not-an-email", Password: "Abcdef12", ConfirmPassword: "Abcdef12"})
	require.Error(t, err)
	assert.Equal(t, "invalid email format", err.Error())
}

func TestStruct(t *testing.T) {
	type form struct {
		Name  string `validate:"required,max=5"`
		Email string `validate:"required,email"`
	}

	assert.NoError(t, Struct(form{Name: "ada", Email: "ada@example.com"}))
	assert.EqualError(t, Struct(form{Email: "ada@example.com"}), "name is required")
	assert.EqualError(t, Struct(form{Name: "adaeze", Email: "ada@example.com"}), "name must be at most 5 characters")
	assert.EqualError(t, Struct(form{Name: "ada", Email: "nope"}), "invalid email format")
}

func TestStructUsesJSONNames(t *testing.T) {
	type passwordChange struct {
		OldPassword string `json:"old_password" validate:"required"`
	}
	assert.EqualError(t, Struct(passwordChange{}), "old_password is required")
}
