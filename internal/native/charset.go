// SPDX-License-Identifier: MPL-2.0

package native

import "strings"

// posixCharset is what the C and POSIX locales use.
const posixCharset = "ANSI_X3.4-1968"

// LocaleCharset derives the locale charset from LC_ALL, LC_CTYPE and LANG,
// in that order of precedence. It returns "" when no locale names one.
func LocaleCharset(environ map[string]string) string {
	var locale string
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := environ[key]; v != "" {
			locale = v
			break
		}
	}

	switch locale {
	case "":
		return ""
	case "C", "POSIX":
		return posixCharset
	}

	// language_TERRITORY.charset@modifier
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	_, charset, ok := strings.Cut(locale, ".")
	if !ok {
		return ""
	}
	return charset
}
