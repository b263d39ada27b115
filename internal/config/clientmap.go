package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ClientDirectoryMap is the parsed contents of config.json: mount path to
// client-directory path. No ecosystem JSONC decoder appears anywhere in
// this codebase's dependency surface, so the comment/trailing-comma
// tolerance the format requires is a small hand-rolled preprocessor ahead
// of the standard decoder, not a replacement for it.
type ClientDirectoryMap map[string]string

// LoadClientDirectoryMap reads and decodes config.json.
func LoadClientDirectoryMap(path string) (ClientDirectoryMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m := ClientDirectoryMap{}
	if err := json.Unmarshal(stripJSONC(raw), &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// stripJSONC removes // and /* */ comments and trailing commas before a
// closing brace or bracket, leaving strict JSON behind. String contents
// are left untouched: a "//" or trailing comma inside a quoted string is
// not a comment or a dangling comma.
func stripJSONC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			out = append(out, '\n')
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++
		default:
			out = append(out, c)
		}
	}

	return stripTrailingCommas(out)
}

func stripTrailingCommas(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		c := data[i]
		out = append(out, c)

		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		if c != ',' {
			continue
		}

		j := i + 1
		for j < len(data) && isJSONSpace(data[j]) {
			j++
		}
		if j < len(data) && (data[j] == '}' || data[j] == ']') {
			out = out[:len(out)-1] // drop the comma just appended
		}
	}
	return out
}

func isJSONSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
