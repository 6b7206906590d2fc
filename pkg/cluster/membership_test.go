package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyJoined(t *testing.T) {
	node2 := Node{Label: "node2", Address: "10.0.0.2"}

	tests := []struct {
		name   string
		status string
		want   bool
	}{
		{
			name:   "listed, crlf lines",
			status: "Cluster status of node rabbit@node2 ...\r\n[{nodes,[{disc,[rabbit@node1,rabbit@node2]}]},\r\n {running_nodes,[rabbit@node1,rabbit@node2]}]\r\n...done.\r\n",
			want:   true,
		},
		{
			name:   "listed, lf lines",
			status: "[{nodes,[{disc,[rabbit@node1]}]},\n {running_nodes,[rabbit@node2,rabbit@node1]}]\n",
			want:   true,
		},
		{
			name:   "only in the nodes line",
			status: "[{nodes,[{disc,[rabbit@node1,rabbit@node2]}]},\r\n {running_nodes,[rabbit@node1]}]\r\n",
			want:   false,
		},
		{
			name:   "no running_nodes line",
			status: "Error: unable to connect to node rabbit@node2: nodedown\r\n",
			want:   false,
		},
		{
			name:   "first running_nodes line wins",
			status: " {running_nodes,[rabbit@node1]}\n {running_nodes,[rabbit@node2]}\n",
			want:   false,
		},
		{
			name:   "address is not identity",
			status: " {running_nodes,[rabbit@10.0.0.2]}\n",
			want:   false,
		},
		{
			name:   "empty",
			status: "",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyJoined(node2, tt.status))
		})
	}
}
