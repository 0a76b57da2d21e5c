// Package env reads .env files: one KEY=VALUE assignment per line, with
// optional "export" prefixes, # comments, and single- or double-quoted values.
// Multi-line values are not supported.
package env

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// SyntaxError reports the line of a malformed .env file.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse reads assignments from r. Later assignments to the same key win.
func Parse(r io.Reader) (map[string]string, error) {
	envMap := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		key, value, ok, err := parseLine(scanner.Text())
		if err != nil {
			return envMap, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}
		if ok {
			envMap[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return envMap, err
	}
	return envMap, nil
}

// ProcessEnv parses the .env file at filename.
func ProcessEnv(filename string) (map[string]string, error) {
	envData, err := os.ReadFile(filename)
	if err != nil {
		return map[string]string{}, err
	}
	return Parse(bytes.NewReader(envData))
}

// Load exports the assignments in filename into the process environment.
// Variables that are already set are left alone, and a missing file is not an
// error.
func Load(filename string) error {
	envMap, err := ProcessEnv(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	for k, v := range envMap {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// parseLine returns ok=false for blank and comment lines.
func parseLine(line string) (key, value string, ok bool, err error) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	if line == "" || line[0] == '#' {
		return "", "", false, nil
	}
	if rest, found := strings.CutPrefix(line, "export "); found {
		line = strings.TrimSpace(rest)
	}

	rawKey, rawValue, found := strings.Cut(line, "=")
	if !found {
		return "", "", false, errors.New("expected KEY=VALUE")
	}
	key = strings.TrimSpace(rawKey)
	if key == "" {
		return "", "", false, errors.New("missing key")
	}
	if !validKey(key) {
		return "", "", false, fmt.Errorf("invalid key %q", key)
	}

	value, err = parseValue(strings.TrimSpace(rawValue))
	if err != nil {
		return "", "", false, err
	}
	return key, value, true, nil
}

func validKey(key string) bool {
	for i, c := range key {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func parseValue(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	switch raw[0] {
	case '\'':
		end := strings.IndexByte(raw[1:], '\'')
		if end < 0 {
			return "", errors.New("unterminated single quote")
		}
		if err := trailing(raw[end+2:]); err != nil {
			return "", err
		}
		return raw[1 : end+1], nil
	case '"':
		return parseDoubleQuoted(raw)
	}

	// Unquoted: a # preceded by whitespace starts a comment.
	for i := 1; i < len(raw); i++ {
		if raw[i] == '#' && (raw[i-1] == ' ' || raw[i-1] == '\t') {
			return strings.TrimSpace(raw[:i]), nil
		}
	}
	return raw, nil
}

func parseDoubleQuoted(raw string) (string, error) {
	var sb strings.Builder
	for i := 1; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '"':
			if err := trailing(raw[i+1:]); err != nil {
				return "", err
			}
			return sb.String(), nil
		case '\\':
			if i+1 == len(raw) {
				return "", errors.New("unterminated double quote")
			}
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(raw[i])
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", errors.New("unterminated double quote")
}

// trailing accepts only whitespace or a comment after a closing quote.
func trailing(rest string) error {
	rest = strings.TrimSpace(rest)
	if rest == "" || rest[0] == '#' {
		return nil
	}
	return errors.New("unexpected characters after quoted value")
}
