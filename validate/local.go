package validate

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/patch"
	"github.com/tbxark/draftagent/types"
)

// LocalValidator parses and checks answers by parameter type and validation rules.
type LocalValidator struct{}

func NewLocalValidator() *LocalValidator {
	return &LocalValidator{}
}

func (v *LocalValidator) Validate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("nil validate request")
	}
	return Check(req.Descriptor, req.Input), nil
}

// Check validates raw against d without any external call.
func Check(d types.ParameterDescriptor, raw string) *Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		return invalid(fmt.Sprintf("%s cannot be empty", d.Label))
	}
	if strings.Contains(value, marker.Open) || strings.Contains(value, marker.Close) {
		return invalid(fmt.Sprintf("%s cannot contain %s or %s", d.Label, marker.Open, marker.Close))
	}

	var res *Result
	switch d.Type {
	case types.ParameterNumber:
		res = checkNumber(d, value)
	case types.ParameterDate:
		res = checkDate(d, value)
	case types.ParameterEmail:
		res = checkEmail(d, value)
	case types.ParameterSelect:
		res = checkSelect(d, value)
	default:
		res = checkText(d, value)
	}
	if !res.Valid {
		return res
	}
	if d.Rules.Pattern != "" {
		re, err := regexp.Compile(d.Rules.Pattern)
		if err != nil {
			return invalid(fmt.Sprintf("%s has an invalid pattern rule", d.Label))
		}
		if !re.MatchString(res.Value) {
			return invalid(fmt.Sprintf("%s does not have the expected format", d.Label))
		}
	}
	return res
}

func checkText(d types.ParameterDescriptor, value string) *Result {
	n := utf8.RuneCountInString(value)
	if d.Rules.MinLength > 0 && n < d.Rules.MinLength {
		return invalid(fmt.Sprintf("%s must be at least %d characters", d.Label, d.Rules.MinLength))
	}
	if d.Rules.MaxLength > 0 && n > d.Rules.MaxLength {
		return invalid(fmt.Sprintf("%s must be at most %d characters", d.Label, d.Rules.MaxLength))
	}
	return &Result{Valid: true, Value: value}
}

var numberNoise = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "", "_", "")

// decimalNumber excludes the hex, NaN and Inf forms strconv.ParseFloat also accepts.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func checkNumber(d types.ParameterDescriptor, value string) *Result {
	value = numberNoise.Replace(value)
	if !decimalNumber.MatchString(value) {
		return invalid(fmt.Sprintf("%s must be a number", d.Label))
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return invalid(fmt.Sprintf("%s must be a number", d.Label))
	}
	if d.Rules.Min != nil && f < *d.Rules.Min {
		return invalid(fmt.Sprintf("%s must be at least %s", d.Label, formatNumber(*d.Rules.Min)))
	}
	if d.Rules.Max != nil && f > *d.Rules.Max {
		return invalid(fmt.Sprintf("%s must be at most %s", d.Label, formatNumber(*d.Rules.Max)))
	}
	return &Result{Valid: true, Value: formatNumber(f)}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func checkDate(d types.ParameterDescriptor, value string) *Result {
	t, err := patch.ParseDate(value)
	if err != nil {
		return invalid(fmt.Sprintf("%s must be a date such as 2024-06-03 or June 3, 2024", d.Label))
	}
	return &Result{Valid: true, Value: t.Format("2006-01-02")}
}

func checkEmail(d types.ParameterDescriptor, value string) *Result {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return invalid(fmt.Sprintf("%s must be a valid email address", d.Label))
	}
	return &Result{Valid: true, Value: addr.Address}
}

func checkSelect(d types.ParameterDescriptor, value string) *Result {
	for _, opt := range d.Options {
		if strings.EqualFold(opt, value) {
			return &Result{Valid: true, Value: opt}
		}
	}
	return invalid(fmt.Sprintf("%s must be one of: %s", d.Label, strings.Join(d.Options, ", ")))
}
