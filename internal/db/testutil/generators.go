// Package testutil provides shared test utilities and generators for property-based testing.
// All string generators are intentionally aggressive to catch edge cases.
package testutil

import (
	"pgregory.net/rapid"
)

// ArbitraryString generates truly arbitrary strings including:
// - Empty strings
// - Null bytes
// - Unicode (CJK, Arabic, emoji)
// - Control characters
// - SQL injection attempts
// - Very long strings
func ArbitraryString() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.String(),                              // Truly arbitrary (rapid's default)
		rapid.Just(""),                              // Empty string
		rapid.Just("\x00"),                          // Single null byte
		rapid.Just("test\x00test"),                  // Embedded null
		rapid.Just("\x00\x00\x00"),                  // Multiple nulls
		rapid.StringMatching(`[a-zA-Z0-9 ]{0,100}`), // Normal alphanumeric
		rapid.StringMatching(`[\x00-\x1F]{1,10}`),   // Control characters
		arbitrarySQLInjection(),                     // SQL injection attempts
		arbitraryUnicode(),                          // Unicode edge cases
		arbitraryWhitespace(),                       // Whitespace variations
		arbitraryLongString(),                       // Long strings
	)
}

// ArbitraryNonEmptyString is like ArbitraryString but never empty.
// Use for fields that require non-empty values (like account names).
func ArbitraryNonEmptyString() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringN(1, 100, 200), // Guaranteed 1-100 chars
		rapid.Just("\x00"),         // Null byte is non-empty
		rapid.Just("test\x00test"),
		rapid.StringMatching(`[a-zA-Z0-9 ]{1,100}`),
		arbitrarySQLInjection(),
		arbitraryUnicode(),
		arbitraryLongString(),
	)
}

// ArbitraryEmail generates syntactically valid, unique-looking email addresses,
// sometimes with upper-case letters to exercise case-insensitive lookups.
func ArbitraryEmail() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		local := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9._+-]{0,20}`).Draw(t, "local")
		domain := rapid.StringMatching(`[a-z]{2,12}`).Draw(t, "domain")
		tld := rapid.SampledFrom([]string{"com", "net", "org", "test", "io"}).Draw(t, "tld")
		return local + "@" + domain + "." + tld
	})
}

// ArbitraryFormValue generates values a shopper might type into a form field:
// arbitrary text, injection attempts and Unicode.
func ArbitraryFormValue() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringMatching(`[a-zA-Z0-9 ]{0,40}`),
		arbitrarySQLInjection(),
		arbitraryUnicode(),
		arbitraryWhitespace(),
	)
}

// arbitrarySQLInjection generates common SQL injection patterns
func arbitrarySQLInjection() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		`' OR 1=1 --`,
		`'; DROP TABLE accounts; --`,
		`" OR "1"="1`,
		`1; SELECT * FROM users`,
		`admin'--`,
		`' UNION SELECT * FROM users --`,
		`'; DELETE FROM sessions; --`,
		`' OR ''='`,
		`1' AND '1'='1`,
		`%27%20OR%20%271%27%3D%271`,
		`<script>alert('xss')</script>`,
		`' OR 1=1#`,
		`admin' #`,
		`' AND 1=0 UNION SELECT 1,2,3 --`,
	})
}

// arbitraryUnicode generates various Unicode edge cases
func arbitraryUnicode() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"日本語",                            // Japanese
		"中文测试",                           // Chinese
		"العربية",                        // Arabic (RTL)
		"עברית",                          // Hebrew (RTL)
		"🔥🎉💻🚀",                           // Emoji
		"emoji🔥in🎉middle",                // Mixed emoji
		"Ñoño",                           // Spanish
		"Zürich",                         // German umlaut
		"Москва",                         // Cyrillic
		"Ελληνικά",                       // Greek
		"한국어",                            // Korean
		"\u200B",                         // Zero-width space
		"\u200C",                         // Zero-width non-joiner
		"\u200D",                         // Zero-width joiner
		"\uFEFF",                         // BOM
		"a\u0300",                        // Combining diacritical
		"\u202E" + "reversed" + "\u202C", // RTL override
		"🧑‍💻",                            // ZWJ sequence (person + computer)
		"👨‍👩‍👧‍👦",                        // Family emoji (ZWJ sequence)
		"\U0001F1FA\U0001F1F8",           // Flag emoji (regional indicators)
		"é" + "\u0301",                   // Double combining
		"test\u00A0space",                // Non-breaking space
		"line\u2028separator",            // Line separator
		"para\u2029separator",            // Paragraph separator
		"\U0001F600",                     // Grinning face emoji
		"math∑∏∫",                        // Mathematical symbols
	})
}

// arbitraryWhitespace generates various whitespace patterns
func arbitraryWhitespace() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		" ",
		"  ",
		"   ",
		"\t",
		"\n",
		"\r",
		"\r\n",
		" \t \n ",
		"\t\t\t",
		"\n\n\n",
		"  test  ",
		"\ttest\t",
		"line1\nline2",
		"line1\r\nline2",
		"\u00A0", // Non-breaking space
		"\u2003", // Em space
		"\u2002", // En space
		"\u3000", // Ideographic space
		"\v",     // Vertical tab
		"\f",     // Form feed
	})
}

// arbitraryLongString generates very long strings to test limits
func arbitraryLongString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		length := rapid.SampledFrom([]int{
			1000,    // 1KB
			10000,   // 10KB
			100000,  // 100KB
			500000,  // 500KB
			1000000, // 1MB (at limit)
		}).Draw(t, "length")

		// Generate a repeating pattern
		base := "abcdefghij"
		result := make([]byte, length)
		for i := 0; i < length; i++ {
			result[i] = base[i%len(base)]
		}
		return string(result)
	})
}
