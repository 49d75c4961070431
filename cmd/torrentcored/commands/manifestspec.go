package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/torrentstore/diskcore/pkg/manifest"
)

// manifestSpec is the YAML description of a torrent's file layout that
// torrentcored reads from disk to build a pkg/manifest.Manifest, standing
// in for the metadata a BitTorrent client would normally parse out of a
// .torrent file and hand to this engine.
type manifestSpec struct {
	PieceLength int64           `yaml:"piece_length"`
	Files       []manifestFile  `yaml:"files"`
	ExpectedSHA []string        `yaml:"piece_hashes,omitempty"` // hex-encoded, index-aligned with pieces
}

type manifestFile struct {
	Path       string `yaml:"path"`
	Size       int64  `yaml:"size"`
	PadFile    bool   `yaml:"pad_file,omitempty"`
	Executable bool   `yaml:"executable,omitempty"`
}

func loadManifestSpec(path string) (*manifestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest spec: %w", err)
	}
	var spec manifestSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse manifest spec: %w", err)
	}
	if spec.PieceLength <= 0 {
		return nil, fmt.Errorf("manifest spec: piece_length must be positive")
	}
	if len(spec.Files) == 0 {
		return nil, fmt.Errorf("manifest spec: at least one file is required")
	}
	return &spec, nil
}

func (s *manifestSpec) buildManifest() (*manifest.Manifest, error) {
	records := make([]manifest.FileRecord, len(s.Files))
	var offset int64
	for i, f := range s.Files {
		records[i] = manifest.FileRecord{
			Path:    f.Path,
			Size:    f.Size,
			Offset:  offset,
			PadFile: f.PadFile,
			Attrs:   manifest.Attributes{Executable: f.Executable},
		}
		offset += f.Size
	}
	return manifest.New(records, s.PieceLength)
}
