package plugins

import (
	"fmt"
	"time"

	"distkit/pkg/layout"
	"distkit/pkg/patcher"
)

// snapshotTimestamp formats the build-time component of snapshot versions.
func snapshotTimestamp(now time.Time) string {
	return now.UTC().Format("20060102150405")
}

// pluginVersion derives the version a non-bundled plugin is published under:
// the layout's evaluator wins, then the descriptor's own <version>, then the
// product build number — suffixed with a build-time timestamp for snapshot
// builds so successive snapshots stay distinguishable.
func pluginVersion(lay *layout.PluginLayout, descriptor []byte, buildNumber string, snapshot bool, now time.Time) string {
	if lay.VersionEvaluator != nil {
		if v := lay.VersionEvaluator(buildNumber); v != "" {
			return v
		}
	}
	if v := patcher.DescriptorVersion(descriptor); v != "" && v != patcher.BuildNumberPlaceholder {
		return v
	}
	if snapshot {
		return fmt.Sprintf("%s.%s", buildNumber, snapshotTimestamp(now))
	}
	return buildNumber
}

// pluginZipName names the published archive for a plugin directory.
func pluginZipName(directoryName, version string) string {
	return fmt.Sprintf("%s-%s.zip", directoryName, version)
}
