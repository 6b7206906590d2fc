package cluster

import "strings"

const runningNodesField = "running_nodes"

// VerifyJoined reports whether node is listed as running in a
// `rabbitmqctl cluster_status` snapshot. Only the first line mentioning
// running_nodes is considered; a snapshot without one counts as not joined.
func VerifyJoined(node Node, clusterStatus string) bool {
	for _, line := range strings.Split(clusterStatus, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.Contains(line, runningNodesField) {
			return strings.Contains(line, node.Name())
		}
	}
	return false
}
