// Package secret holds values that must not leak into logs, spans or error strings.
package secret

import (
	"net/url"
	"strings"
)

type String string

const redacted = "REDACTED"

// String implements fmt.Stringer and redacts the sensitive value.
func (s String) String() string {
	return redacted
}

// GoString implements fmt.GoStringer and redacts the sensitive value.
func (s String) GoString() string {
	return redacted
}

// Raw returns the sensitive value as a string.
func (s String) Raw() string {
	return string(s)
}

func (s String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// RedactURI returns a connection string that is safe to log. The password in the user info,
// if any, is replaced. A URI that cannot be parsed is redacted entirely, since the parse
// error would otherwise echo it back.
func RedactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User == nil {
		return u.String()
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}

// URI is a connection string whose password is hidden when formatted.
type URI String

func (u URI) String() string {
	return RedactURI(string(u))
}

func (u URI) GoString() string {
	return u.String()
}

func (u URI) Raw() string {
	return string(u)
}

func (u URI) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strings.ReplaceAll(u.String(), `"`, `\"`) + `"`), nil
}
