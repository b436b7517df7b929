package api

import "github.com/lysyi3m/i79-incidents/app/artifact"

// ArtifactReader loads the published artifact.
type ArtifactReader interface {
	Read() (*artifact.Document, []byte, error)
}

type Handler struct {
	reader  ArtifactReader
	version string
}

// FileReader reads the artifact from disk on every request so a new run
// is picked up without a restart.
type FileReader struct {
	Path string
}

var _ ArtifactReader = FileReader{}
