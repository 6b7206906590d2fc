package json

import (
	"io"

	"github.com/bytedance/sonic"
)

type sonicEncoder struct {
	cfg Config
	api sonic.API
}

func newSonicEncoder(cfg Config) *sonicEncoder {
	return &sonicEncoder{
		cfg: cfg,
		api: sonic.Config{
			EscapeHTML: cfg.EscapeHTML,
		}.Froze(),
	}
}

func (e *sonicEncoder) Marshal(v interface{}) ([]byte, error) {
	if e.cfg.Indent {
		return e.api.MarshalIndent(v, "", indent)
	}
	return e.api.Marshal(v)
}

func (e *sonicEncoder) Unmarshal(data []byte, v interface{}) error {
	return e.api.Unmarshal(data, v)
}

func (e *sonicEncoder) Write(w io.Writer, v interface{}) error {
	data, err := e.Marshal(v)
	if err != nil {
		return err
	}

	// Add newline for consistency with the standard library
	_, err = w.Write(append(data, '\n'))
	return err
}
