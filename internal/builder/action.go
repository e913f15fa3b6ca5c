package builder

import (
	"regexp"
	"strings"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

var placeholder = regexp.MustCompile(`\{builder\.([A-Za-z_][A-Za-z0-9_]*)\}`)

// AttrResolver returns the tokens a placeholder attribute expands to.
type AttrResolver func(name string) ([]string, bool)

// FormatAction turns an action template into an argument vector. A
// placeholder that forms a whole word expands to one argument per token; a
// placeholder inside a larger word is replaced by its space-joined tokens.
// Every substituted token loses leading '-' and '*' characters so values
// taken from paths cannot be read as flags. Words that become empty are
// dropped.
func FormatAction(action string, resolve AttrResolver) ([]string, error) {
	var argv []string
	for _, word := range strings.Fields(action) {
		if m := placeholder.FindStringSubmatch(word); m != nil && m[0] == word {
			tokens, err := lookupAttr(resolve, m[1])
			if err != nil {
				return nil, err
			}
			for _, tok := range tokens {
				if tok = sanitizeToken(tok); tok != "" {
					argv = append(argv, tok)
				}
			}
			continue
		}

		var ferr error
		out := placeholder.ReplaceAllStringFunc(word, func(ph string) string {
			name := placeholder.FindStringSubmatch(ph)[1]
			tokens, err := lookupAttr(resolve, name)
			if err != nil {
				ferr = err
				return ""
			}
			clean := make([]string, 0, len(tokens))
			for _, tok := range tokens {
				if tok = sanitizeToken(tok); tok != "" {
					clean = append(clean, tok)
				}
			}
			return strings.Join(clean, " ")
		})
		if ferr != nil {
			return nil, ferr
		}
		if out != "" {
			argv = append(argv, out)
		}
	}
	if len(argv) == 0 {
		return nil, derrors.BuildError("action formats to an empty command").
			WithContext("action", action).
			Build()
	}
	return argv, nil
}

func lookupAttr(resolve AttrResolver, name string) ([]string, error) {
	tokens, ok := resolve(name)
	if !ok {
		return nil, derrors.BuildError("unknown action placeholder").
			WithContext("placeholder", "{builder."+name+"}").
			Build()
	}
	return tokens, nil
}

func sanitizeToken(tok string) string {
	return strings.TrimLeft(tok, "-*")
}
