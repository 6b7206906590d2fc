package json

import (
	"bytes"
	"encoding/json"
	"io"
)

type standardEncoder struct {
	cfg Config
}

func newStandardEncoder(cfg Config) *standardEncoder {
	return &standardEncoder{cfg: cfg}
}

func (e *standardEncoder) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, v); err != nil {
		return nil, err
	}

	// Remove trailing newline added by Encode
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (e *standardEncoder) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (e *standardEncoder) Write(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(e.cfg.EscapeHTML)
	if e.cfg.Indent {
		enc.SetIndent("", indent)
	}
	return enc.Encode(v)
}
