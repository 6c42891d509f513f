// Package validate は入力検証ルールを提供する。
// 検証はネットワーク・データベース呼び出しの前に行い、失敗はmodel.ValidationErrorで返す。
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hitoshi/ministry/internal/model"
)

// EmailPattern はメールアドレスの構文チェックに使うパターン。
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	upperPattern = regexp.MustCompile(`[A-Z]`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
)

// NotBlank は前後の空白を除いた値が空でないことを検証する。
func NotBlank(message string) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(message)
		}
		return nil
	})
}

// MinTrimmed は前後の空白を除いた文字数がn以上であることを検証する。
func MinTrimmed(n int, message string) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if len([]rune(strings.TrimSpace(s))) < n {
			return errors.New(message)
		}
		return nil
	})
}

// PrintableText は制御文字と不正なUTF-8を含まないことを検証する。
// multilineがtrueの場合は改行とタブを許可する。
func PrintableText(multiline bool, message string) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if !utf8.ValidString(s) {
			return errors.New(message)
		}
		for _, r := range s {
			if multiline && (r == '\n' || r == '\t') {
				continue
			}
			if unicode.IsControl(r) {
				return errors.New(message)
			}
		}
		return nil
	})
}

// EmailRules はメールアドレス欄のルール。
func EmailRules() []validation.Rule {
	return []validation.Rule{
		NotBlank("Email is required"),
		validation.Match(EmailPattern).Error("Please enter a valid email address"),
	}
}

// PasswordRules はパスワードポリシー（8文字以上、大文字・小文字・数字を含む）のルール。
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Password is required"),
		validation.Length(8, 128).Error("Password must be at least 8 characters"),
		validation.Match(upperPattern).Error("Password must contain an uppercase letter"),
		validation.Match(lowerPattern).Error("Password must contain a lowercase letter"),
		validation.Match(digitPattern).Error("Password must contain a number"),
	}
}

// Password は単体でパスワードポリシーを検証する。
func Password(password string) error {
	return Convert(validation.Validate(password, PasswordRules()...), "password")
}

// Equals は値がotherと一致することを検証する。
func Equals(other, message string) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s != other {
			return errors.New(message)
		}
		return nil
	})
}

// Convert はozzo-validationのエラーをmodel.ValidationErrorに変換する。
// 単一値の検証エラーはfieldに割り当てる。ルール自体の内部エラーはそのまま返す。
func Convert(err error, field string) error {
	if err == nil {
		return nil
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}

	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		for name, fe := range errs {
			if fe != nil {
				fields[name] = fe.Error()
			}
		}
		return &model.ValidationError{Fields: fields}
	}

	return model.NewValidationError(field, err.Error())
}
