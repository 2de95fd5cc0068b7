package manifest

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func decodeYAML(data []byte) (*document, error) {
	doc := &document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeTOML(data []byte) (*document, error) {
	doc := &document{}
	md, err := toml.Decode(string(data), doc)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &unknownKeyError{key: undecoded[0].String()}
	}
	return doc, nil
}

type unknownKeyError struct {
	key string
}

func (e *unknownKeyError) Error() string {
	return "unknown key " + e.key
}
