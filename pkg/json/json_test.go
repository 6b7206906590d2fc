package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Node    string   `json:"node"`
	Running bool     `json:"running"`
	Members []string `json:"members,omitempty"`
}

func TestEncoders(t *testing.T) {
	for _, lib := range []Library{LibraryStandard, LibrarySonic} {
		t.Run(string(lib), func(t *testing.T) {
			enc, err := New(Config{Library: lib})
			require.NoError(t, err)

			in := report{Node: "rabbit@node1", Running: true, Members: []string{"rabbit@node2"}}
			data, err := enc.Marshal(in)
			require.NoError(t, err)
			assert.JSONEq(t, `{"node":"rabbit@node1","running":true,"members":["rabbit@node2"]}`, string(data))
			assert.NotContains(t, string(data), "\n")

			var out report
			require.NoError(t, enc.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestEncoders_Write(t *testing.T) {
	for _, lib := range []Library{LibraryStandard, LibrarySonic} {
		t.Run(string(lib), func(t *testing.T) {
			enc, err := New(Config{Library: lib, Indent: true})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, enc.Write(&buf, report{Node: "rabbit@node1"}))

			out := buf.String()
			assert.JSONEq(t, `{"node":"rabbit@node1","running":false}`, out)
			assert.Contains(t, out, "\n  \"node\": ")
			assert.True(t, strings.HasSuffix(out, "}\n"))
		})
	}
}

func TestNew_UnknownLibrary(t *testing.T) {
	_, err := New(Config{Library: "jsoniter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jsoniter")
}
