//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package sdkutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
)

// Properties holds the properties read from a properties file.
// Each property is written on its own line in one of the forms:
//
//	name=value
//	name: value
//
// Empty lines and lines starting with '#' or '!' are ignored. When a name
// appears more than once, the last value wins.
type Properties struct {
	file  string
	props map[string]property
}

type property struct {
	value string
	line  int
}

// ReadProperties reads the properties file at the specified path. A path
// starting with '~' is relative to the home directory of the user.
//
// A line that is neither empty, a comment nor a property is an error.
func ReadProperties(file string) (*Properties, error) {
	file, err := ExpandPath(file)
	if err != nil {
		return nil, err
	}
	if err := checkFile(file); err != nil {
		return nil, err
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseProperties(file, f)
}

func parseProperties(file string, r io.Reader) (*Properties, error) {
	p := &Properties{
		file:  file,
		props: make(map[string]property),
	}

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}

		idx := strings.IndexAny(line, "=:")
		if idx < 0 {
			return nil, fmt.Errorf("%s:%d: missing '=' after property name", file, n)
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			return nil, fmt.Errorf("%s:%d: missing property name", file, n)
		}
		p.props[key] = property{value: strings.TrimSpace(line[idx+1:]), line: n}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", file, err)
	}
	return p, nil
}

// File returns the path of the properties file.
func (p *Properties) File() string {
	return p.file
}

// Get returns the value of the property with the specified name.
func (p *Properties) Get(key string) (string, error) {
	prop, ok := p.props[key]
	if !ok {
		return "", fmt.Errorf("cannot find property %q in %s", key, p.file)
	}
	return prop.value, nil
}

// Line returns the line the property with the specified name was read from,
// or 0 if there is no such property.
func (p *Properties) Line(key string) int {
	return p.props[key].line
}

// Keys returns the names of all properties in lexical order.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.props))
	for k := range p.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkFile(file string) error {
	if file == "" {
		return errors.New("file path must be non-empty")
	}

	fileInfo, err := os.Stat(file)
	if err != nil {
		return err
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", file)
	}

	return nil
}

// ExpandPath cleans the path and expands a leading tilde to the home
// directory of the user.
func ExpandPath(filePath string) (string, error) {
	cleaned := path.Clean(filePath)
	if !strings.HasPrefix(cleaned, "~") {
		return cleaned, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, cleaned[1:]), nil
}
