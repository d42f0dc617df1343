package plex

import (
	"fmt"
	"path/filepath"

	"previewd/internal/services"
)

// BundleIndexPath returns the preview artifact location for a bundle hash
// inside the Plex data directory:
//
//	<plexConfigDir>/Media/localhost/<first char>/<rest>.bundle/Contents/Indexes/index-sd.bif
//
// where the first hash character becomes a shard directory.
func BundleIndexPath(plexConfigDir, bundleHash string) (string, error) {
	if len(bundleHash) < 2 {
		return "", services.Wrap(services.ErrValidation, "plex", "bundle path",
			fmt.Sprintf("bundle hash %q too short", bundleHash), nil)
	}
	bundleDir := filepath.Join(
		plexConfigDir,
		"Media", "localhost",
		bundleHash[:1],
		bundleHash[1:]+".bundle",
	)
	return filepath.Join(bundleDir, "Contents", "Indexes", "index-sd.bif"), nil
}
