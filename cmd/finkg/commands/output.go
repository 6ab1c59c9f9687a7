package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teranos/finkg/errors"
)

// Output formats accepted by --format
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

// render writes v in a machine-readable format. header, when set, is written
// as a comment line before YAML and TOML output.
func render(w io.Writer, format, header string, v interface{}) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "failed to marshal YAML")
		}
		return writeWithHeader(w, header, data)

	case formatTOML:
		data, err := toml.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "failed to marshal TOML")
		}
		return writeWithHeader(w, header, data)

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: %s, %s, %s)", format, formatTOML, formatJSON, formatYAML)
	}
}

func writeWithHeader(w io.Writer, header string, data []byte) error {
	if header != "" {
		if _, err := fmt.Fprintf(w, "# %s\n", header); err != nil {
			return err
		}
	}
	_, err := w.Write(data)
	return err
}
