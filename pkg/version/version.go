package version

// Values below are overridden at link time with
// -ldflags "-X github.com/meftunca/rmqcluster/pkg/version.GitCommit=..."
var (
	// Version represents the current version of rmqcluster
	Version = "0.1.0"

	// BuildDate will be set during build
	BuildDate = ""

	// GitCommit will be set during build
	GitCommit = ""
)

const (
	// AppName is the application name
	AppName = "rmqcluster"

	// AppDescription is the application description
	AppDescription = "RabbitMQ cluster formation and provisioning"
)

// GetVersionInfo returns formatted version information
func GetVersionInfo() map[string]string {
	return map[string]string{
		"name":        AppName,
		"version":     Version,
		"description": AppDescription,
		"build_date":  BuildDate,
		"git_commit":  GitCommit,
	}
}
