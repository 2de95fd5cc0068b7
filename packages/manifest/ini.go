package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// decodeINI parses the section-per-test INI layout:
//
//	[DEFAULT]
//	skip-if = os == "android"
//
//	[test_expected_fail.py]
//	expected = fail
//
//	[test_disabled.py]
//	disabled = flaky on emulator
//
// Keys may be separated from values by '=' or ':', whichever comes first.
// Indented lines continue the previous value, which is how multi-line
// conditions are written.
func decodeINI(data []byte) (*document, error) {
	doc := &document{}
	var current *rawTest
	var lastKey string
	inDefault := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("line %d: unterminated section header", lineNo)
			}
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				return nil, fmt.Errorf("line %d: empty section name", lineNo)
			}
			lastKey = ""
			if name == "DEFAULT" {
				inDefault = true
				current = &doc.Defaults
				continue
			}
			inDefault = false
			doc.Tests = append(doc.Tests, rawTest{Path: name})
			current = &doc.Tests[len(doc.Tests)-1]
			continue
		}

		// continuation of the previous value
		if raw[0] == ' ' || raw[0] == '\t' {
			if current == nil || lastKey == "" {
				return nil, fmt.Errorf("line %d: continuation line without a key", lineNo)
			}
			if err := setINIValue(current, lastKey, line, true); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: key outside of a section", lineNo)
		}

		key, value, ok := splitINILine(line)
		if !ok {
			return nil, fmt.Errorf("line %d: expected key = value", lineNo)
		}
		if inDefault && key == "path" {
			return nil, fmt.Errorf("line %d: path is not allowed in DEFAULT", lineNo)
		}
		if err := setINIValue(current, key, value, false); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		lastKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func splitINILine(line string) (key, value string, ok bool) {
	idx := -1
	for _, sep := range []string{"=", ":"} {
		if i := strings.Index(line, sep); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func setINIValue(t *rawTest, key, value string, continued bool) error {
	switch key {
	case "expected":
		t.Expected = value
	case "disabled":
		if continued {
			t.Disabled += " " + value
		} else {
			t.Disabled = value
		}
	case "skip-if":
		if value != "" {
			t.SkipIf = append(t.SkipIf, value)
		}
	case "run-if":
		if value != "" {
			t.RunIf = append(t.RunIf, value)
		}
	case "tags":
		t.Tags = append(t.Tags, strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	case "path":
		t.Path = value
	default:
		// unknown keys are metadata for other tools
	}
	return nil
}
