package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/auth"
)

// LocaleSet reports which locales have translations.
type LocaleSet interface {
	Has(locale string) bool
	Default() string
}

// PreferredLocale returns the locale a user picked, or "" when none.
type PreferredLocale func(user string) string

// Locale picks the response locale from the ?locale= query, then the user's
// stored preference, then Accept-Language, then the default.
func Locale(set LocaleSet, preferred PreferredLocale) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := pickLocale(r, set, preferred)
			w.Header().Set("Content-Language", loc)
			ctx := context.WithValue(r.Context(), localeKey, loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func pickLocale(r *http.Request, set LocaleSet, preferred PreferredLocale) string {
	if q := r.URL.Query().Get("locale"); set.Has(q) {
		return q
	}
	if claims, ok := auth.FromContext(r.Context()); ok && preferred != nil {
		if p := preferred(claims.Email); set.Has(p) {
			return p
		}
	}
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		if set.Has(base) {
			return base
		}
	}
	return set.Default()
}

// LocaleFromContext returns the locale chosen by Locale, or "" outside it.
func LocaleFromContext(ctx context.Context) string {
	loc, _ := ctx.Value(localeKey).(string)
	return loc
}
