package validate

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hitoshi/ministry/internal/model"
)

func TestPassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"abc", true},
		{"alllowercase1", true},
		{"ALLUPPERCASE1", true},
		{"NoDigitsHere", true},
		{"", true},
		{"Valid1Password", false},
		{"Passw0rd", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := Password(tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Password(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil {
				var vErr *model.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %T", err)
				}
				if vErr.Fields["password"] == "" {
					t.Errorf("Fields = %v, want password entry", vErr.Fields)
				}
			}
		})
	}
}

func TestEmailRules(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"grace@example.com", true},
		{"a@b.co", true},
		{"", false},
		{"   ", false},
		{"no-at-sign.com", false},
		{"two@@example.com", false},
		{"space in@example.com", false},
		{"missing@tld", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := validation.Validate(tt.email, EmailRules()...)
			if (err == nil) != tt.valid {
				t.Errorf("email %q valid = %v, want %v (err=%v)", tt.email, err == nil, tt.valid, err)
			}
		})
	}
}

type sample struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestConvert_StructErrorsUseJSONNames(t *testing.T) {
	s := sample{Name: " ", Email: "bad"}
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Name, MinTrimmed(2, "Name is too short")),
		validation.Field(&s.Email, EmailRules()...),
	)

	converted := Convert(err, "")
	var vErr *model.ValidationError
	if !errors.As(converted, &vErr) {
		t.Fatalf("expected ValidationError, got %T: %v", converted, converted)
	}
	if vErr.Fields["name"] != "Name is too short" {
		t.Errorf("name = %q", vErr.Fields["name"])
	}
	if vErr.Fields["email"] != "Please enter a valid email address" {
		t.Errorf("email = %q", vErr.Fields["email"])
	}
}

func TestConvert_Nil(t *testing.T) {
	if err := Convert(nil, "x"); err != nil {
		t.Errorf("Convert(nil) = %v", err)
	}
}

func TestEquals(t *testing.T) {
	if err := validation.Validate("a", Equals("a", "mismatch")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validation.Validate("a", Equals("b", "mismatch")); err == nil || err.Error() != "mismatch" {
		t.Errorf("err = %v, want mismatch", err)
	}
}

func TestPrintableText(t *testing.T) {
	tests := []struct {
		name      string
		multiline bool
		value     string
		wantErr   bool
	}{
		{"prose with symbols", false, "x<y & a>b", false},
		{"japanese", false, "感謝します", false},
		{"newline allowed in multiline", true, "one\ntwo\tthree", false},
		{"newline rejected in single line", false, "one\ntwo", true},
		{"nul", true, "a\x00b", true},
		{"escape", true, "\x1b[2J", true},
		{"delete", true, "a\x7fb", true},
		{"invalid utf-8", true, "\xff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, PrintableText(tt.multiline, "invalid"))
			if (err != nil) != tt.wantErr {
				t.Errorf("PrintableText(%v) on %q = %v, wantErr %v", tt.multiline, tt.value, err, tt.wantErr)
			}
		})
	}
}
