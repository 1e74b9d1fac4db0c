package sqlguard

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/Sumhack/community-search-api/pkg/apperrors"
)

// ScreenValue runs libinjection over a value that will be embedded into a
// candidate query as a string literal. Resolved entity values come from the
// store itself but pass through user-adjacent matching, so they are screened
// before substitution.
func ScreenValue(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if isInjection, fingerprint := libinjection.IsSQLi(value); isInjection {
		return apperrors.NewUnsafeQueryError(
			fmt.Sprintf("injection pattern detected (fingerprint %s)", fingerprint))
	}
	return nil
}

// ScreenValues screens each value and returns the first violation.
func ScreenValues(values []string) error {
	for _, v := range values {
		if err := ScreenValue(v); err != nil {
			return err
		}
	}
	return nil
}
