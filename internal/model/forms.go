package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"panel/internal/errs"
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	siretRe  = regexp.MustCompile(`^\d{14}$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance 懒加载校验器，字段名使用 json 标签
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
			return passwordPolicyError(fl.Field().String()) == ""
		})
		_ = v.RegisterValidation("numeric_code", func(fl validator.FieldLevel) bool {
			return digitsRe.MatchString(fl.Field().String())
		})
		v.RegisterStructValidation(signUpStructLevel, SignUpRequest{})
		v.RegisterStructValidation(resetPasswordStructLevel, ResetPasswordRequest{})
		validate = v
	})
	return validate
}

// passwordPolicyError 密码策略：至少8位，包含大写字母、数字和特殊字符
func passwordPolicyError(pw string) string {
	if len(pw) < 8 {
		return "Password must be at least 8 characters"
	}
	var upper, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
		default:
			special = true
		}
	}
	switch {
	case !upper:
		return "Password must contain at least one uppercase letter"
	case !digit:
		return "Password must contain at least one digit"
	case !special:
		return "Password must contain at least one special character"
	}
	return ""
}

// SignInRequest 登录表单
type SignInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"min=6"`
}

// Normalize 去除用户名首尾空白
func (r *SignInRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

// OTPRequest 二次验证码表单
type OTPRequest struct {
	Code string `json:"code" validate:"len=6,numeric_code"`
}

// SignUpRequest 注册表单
type SignUpRequest struct {
	Firstname       string      `json:"firstname" validate:"min=3"`
	Lastname        string      `json:"lastname" validate:"min=3"`
	Email           string      `json:"email" validate:"required,email"`
	Password        string      `json:"password" validate:"password_policy"`
	ConfirmPassword string      `json:"confirmPassword"`
	AccountType     AccountType `json:"accountType" validate:"oneof=user enterprise"`
	Name            string      `json:"name,omitempty"`
	SiretNumber     string      `json:"siret_number,omitempty"`
	HeadOffice      string      `json:"head_office,omitempty"`
}

// Normalize 去除空白并统一邮箱大小写
func (r *SignUpRequest) Normalize() {
	r.Firstname = strings.TrimSpace(r.Firstname)
	r.Lastname = strings.TrimSpace(r.Lastname)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.SiretNumber = strings.TrimSpace(r.SiretNumber)
	r.HeadOffice = strings.TrimSpace(r.HeadOffice)
}

func signUpStructLevel(sl validator.StructLevel) {
	r := sl.Current().Interface().(SignUpRequest)
	if r.Password != r.ConfirmPassword {
		sl.ReportError(r.ConfirmPassword, "confirmPassword", "ConfirmPassword", "mismatch", "")
	}
	if r.AccountType != AccountTypeEnterprise {
		return
	}
	if len(r.Name) < 2 {
		sl.ReportError(r.Name, "name", "Name", "enterprise_required", "")
	}
	switch {
	case r.SiretNumber == "":
		sl.ReportError(r.SiretNumber, "siret_number", "SiretNumber", "enterprise_required", "")
	case !siretRe.MatchString(r.SiretNumber):
		sl.ReportError(r.SiretNumber, "siret_number", "SiretNumber", "siret", "")
	}
	if r.HeadOffice == "" {
		sl.ReportError(r.HeadOffice, "head_office", "HeadOffice", "enterprise_required", "")
	}
}

// ForgotPasswordRequest 找回密码表单
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Normalize 统一邮箱格式
func (r *ForgotPasswordRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// ResetPasswordRequest 重置密码表单
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"password_policy"`
	ConfirmPassword string `json:"confirmPassword"`
}

func resetPasswordStructLevel(sl validator.StructLevel) {
	r := sl.Current().Interface().(ResetPasswordRequest)
	if r.Password != r.ConfirmPassword {
		sl.ReportError(r.ConfirmPassword, "confirmPassword", "ConfirmPassword", "mismatch", "")
	}
}

// ResendActivationRequest 重发激活邮件表单
type ResendActivationRequest struct {
	Email string `json:"email" validate:"required"`
}

// fieldLabels 字段的显示名称
var fieldLabels = map[string]string{
	"username":     "Username",
	"password":     "Password",
	"code":         "Code",
	"firstname":    "First name",
	"lastname":     "Last name",
	"email":        "Email",
	"accountType":  "Account type",
	"name":         "Company name",
	"siret_number": "SIRET number",
	"head_office":  "Address",
}

// Validate 校验表单，失败时返回 *errs.ValidationError
func Validate(form interface{}) error {
	err := validatorInstance().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, exists := fields[name]; exists {
			continue
		}
		fields[name] = describe(fe)
	}
	return &errs.ValidationError{Fields: fields}
}

// describe 生成字段错误信息
func describe(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "len", "numeric_code":
		return "The code must contain 6 digits"
	case "email":
		return "Invalid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	case "password_policy":
		return passwordPolicyError(fmt.Sprint(fe.Value()))
	case "mismatch":
		return "Passwords do not match"
	case "enterprise_required":
		return fmt.Sprintf("%s is required for a business account", label)
	case "siret":
		return "SIRET number must contain exactly 14 digits"
	}
	return fmt.Sprintf("%s is invalid", label)
}
