package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// Render substitutes the template placeholders {PREFIX}, {YYYY}, {YY}, {MM}
// and {NUMBER} or {NUMBER:0Nd} with values derived from the document date and
// the allocated sequence number. Any other {...} fails with a template error.
func Render(tmpl, prefix string, date time.Time, number int64) (string, error) {
	if number < 0 {
		return "", fmt.Errorf("numbering: negative sequence value %d: %w", number, shared.ErrInvalidSequence)
	}

	var out strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:open])
		rest = rest[open+1:]

		close := strings.IndexByte(rest, '}')
		if close < 0 {
			return "", fmt.Errorf("numbering: unclosed placeholder in %q: %w", tmpl, shared.ErrTemplate)
		}
		token := rest[:close]
		rest = rest[close+1:]

		rendered, err := renderToken(token, prefix, date, number)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
	}
}

func renderToken(token, prefix string, date time.Time, number int64) (string, error) {
	switch token {
	case "PREFIX":
		return prefix, nil
	case "YYYY":
		return fmt.Sprintf("%04d", date.Year()), nil
	case "YY":
		return fmt.Sprintf("%02d", date.Year()%100), nil
	case "MM":
		return fmt.Sprintf("%02d", int(date.Month())), nil
	case "NUMBER":
		return strconv.FormatInt(number, 10), nil
	}

	if width, ok := numberWidth(token); ok {
		return fmt.Sprintf("%0*d", width, number), nil
	}
	return "", fmt.Errorf("numbering: unknown placeholder {%s}: %w", token, shared.ErrTemplate)
}

// numberWidth parses the NUMBER:0Nd form and returns the zero-pad width.
func numberWidth(token string) (int, bool) {
	spec, ok := strings.CutPrefix(token, "NUMBER:")
	if !ok {
		return 0, false
	}
	if len(spec) < 3 || spec[0] != '0' || spec[len(spec)-1] != 'd' {
		return 0, false
	}
	width, err := strconv.Atoi(spec[1 : len(spec)-1])
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}
