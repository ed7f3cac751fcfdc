package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads exactly one JSON document from r into v and validates it.
func Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain only one JSON object", ErrInvalidDocument)
	}
	return Validate(v)
}

func readFile[T any](path string) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var doc T
	if err := Decode(f, &doc); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &doc, nil
}

func ReadNetworkFile(path string) (*NetworkDoc, error) {
	log.Infof("read network from %s", path)
	return readFile[NetworkDoc](path)
}

func ReadQueryFile(path string) (*QueryDoc, error) {
	log.Infof("read query from %s", path)
	return readFile[QueryDoc](path)
}

// WriteFile writes doc as indented JSON.
func WriteFile(path string, doc any) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
