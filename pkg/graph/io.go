package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MarshalGraph converts a graph to indented JSON bytes.
func MarshalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g *Graph, w io.Writer) error {
	return writeGraphTo(g, w)
}

// WriteGraphFile writes a graph to a JSON file.
func WriteGraphFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeGraphTo(g, f)
}

// ReadGraph decodes a JSON graph and validates it.
func ReadGraph(r io.Reader) (*Graph, error) {
	return readGraphFrom(r)
}

// ReadGraphFile reads and validates a JSON graph file.
func ReadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readGraphFrom(f)
}

// UnmarshalGraph decodes and validates JSON bytes.
func UnmarshalGraph(data []byte) (*Graph, error) {
	return readGraphFrom(bytes.NewReader(data))
}

func writeGraphTo(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readGraphFrom(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &g, nil
}
