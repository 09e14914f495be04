package generation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	untaggedFence = regexp.MustCompile("(?s)```[ \t]*\r?\n(.*?)```")
	anyFence      = regexp.MustCompile("(?s)```[\\w+#.-]*[ \t]*\r?\n(.*?)```")

	errNoCode = errors.New("response contained no code")
)

// ExtractCode pulls a single code artifact out of a model response. It
// prefers a fence tagged with language, then an untagged fence, then any
// fence, and otherwise takes the whole trimmed text. Several fences tagged
// with language make the response ambiguous.
func ExtractCode(response, language string) (string, error) {
	if language != "" {
		tagged := regexp.MustCompile("(?s)```" + regexp.QuoteMeta(language) + "[ \t]*\r?\n(.*?)```")
		if all := tagged.FindAllStringSubmatch(response, -1); len(all) > 1 {
			return "", fmt.Errorf("response contained %d %s code blocks, expected one", len(all), language)
		} else if len(all) == 1 {
			return clean(all[0][1])
		}
	}
	if m := untaggedFence.FindStringSubmatch(response); m != nil {
		return clean(m[1])
	}
	if m := anyFence.FindStringSubmatch(response); m != nil {
		return clean(m[1])
	}
	return clean(response)
}

func clean(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errNoCode
	}
	return s + "\n", nil
}
