package forms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectsAllFields(t *testing.T) {
	t.Parallel()

	errs := Validate(
		Field{Name: "username", Value: "", Rules: []Rule{Required(), Username()}},
		Field{Name: "email", Value: "not-an-email", Rules: []Rule{Required(), Email()}},
		Field{Name: "password", Value: "secret", Rules: []Rule{Required()}},
	)

	assert.Len(t, errs, 2)
	assert.Equal(t, "this field is required", errs["username"])
	assert.Equal(t, "invalid email address", errs["email"])
	assert.NotContains(t, errs, "password")
}

func TestValidateShortCircuitsPerField(t *testing.T) {
	t.Parallel()

	// The Required failure must mask the Username format failure.
	errs := Validate(Field{Name: "username", Value: "", Rules: []Rule{Required(), Username()}})
	assert.Equal(t, "this field is required", errs["username"])
}

func TestValidateCleanReturnsNil(t *testing.T) {
	t.Parallel()

	errs := Validate(
		Field{Name: "username", Value: "alice", Rules: []Rule{Required(), Username()}},
		Field{Name: "email", Value: "alice@example.com", Rules: []Rule{Required(), Email()}},
	)
	assert.Nil(t, errs)
}

func TestLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		min     int
		max     int
		wantErr bool
	}{
		{"Exactly Min", "a", 1, 1000, false},
		{"Exactly Max", strings.Repeat("b", 1000), 1, 1000, false},
		{"Too Short", "", 1, 1000, true},
		{"Too Long", strings.Repeat("b", 1001), 1, 1000, true},
		{"About Me Cap", strings.Repeat("c", 141), 0, 140, true},
		{"Empty Allowed", "", 0, 140, false},
		{"Multibyte Counted As Runes", strings.Repeat("é", 1000), 1, 1000, false},
		{"Multibyte Over Max", strings.Repeat("é", 1001), 1, 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Length(tt.min, tt.max)(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "alice_42", false},
		{"Valid With Hyphen", "alice-42", false},
		{"Too Short", "ab", true},
		{"Too Long", strings.Repeat("a", 31), true},
		{"Illegal Characters", "alice!", true},
		{"Leading Underscore", "_alice", true},
		{"Trailing Hyphen", "alice-", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Username()(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEqualTo(t *testing.T) {
	t.Parallel()

	assert.NoError(t, EqualTo("pw1", "password")("pw1"))
	assert.Error(t, EqualTo("pw1", "password")("pw2"))
}

func TestEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "bob@example.com", false},
		{"Subdomain", "bob@mail.example.co.uk", false},
		{"Missing At", "bobexample.com", true},
		{"Missing TLD", "bob@example", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Email()(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
