// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the request locale. An explicit X-Locale header wins,
// then Accept-Language, then the configured default. The result is stored in
// the Gin context and echoed as Content-Language.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

const (
	// HeaderLocale lets clients force a locale regardless of Accept-Language.
	HeaderLocale = "X-Locale"

	ctxKeyLocale = "locale"
)

// Locale negotiates the request locale against the supported set.
func Locale(fallback i18n.Locale) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := i18n.Negotiate(c.GetHeader(HeaderLocale), c.GetHeader("Accept-Language"), fallback)
		c.Set(ctxKeyLocale, l)
		c.Header("Content-Language", string(l))
		c.Next()
	}
}

// LocaleFrom returns the negotiated locale, or English when the middleware
// did not run.
func LocaleFrom(c *gin.Context) i18n.Locale {
	if v, ok := c.Get(ctxKeyLocale); ok {
		if l, ok := v.(i18n.Locale); ok && l.Valid() {
			return l
		}
	}
	return i18n.English
}
