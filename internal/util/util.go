// Package util provides common string helpers used across the trajector service.
package util

import "strings"

// Unquote strips the engine's field quoting: surrounding double quotes
// and doubled interior quotes ("" becomes ").
func Unquote(s string) string {
	return strings.ReplaceAll(strings.Trim(s, `"`), `""`, `"`)
}
