package export

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLExporter exports transcripts in YAML format
type YAMLExporter struct{}

// Export exports a transcript to YAML
func (e *YAMLExporter) Export(t *Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(t)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
