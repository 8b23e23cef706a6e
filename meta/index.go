package meta

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Index is the global build index: every known build id, most recent
// first. It is mirrored locally and remotely and is the single source
// of truth for "what builds exist" to outside consumers.
type Index struct {
	Builds []string `json:"builds"`
}

// Latest returns the most recent build id.
func (i *Index) Latest() (string, error) {
	if len(i.Builds) == 0 {
		return "", errors.New("build index is empty")
	}
	return i.Builds[0], nil
}

// Has reports whether id is present in the index.
func (i *Index) Has(id string) bool {
	for _, existing := range i.Builds {
		if existing == id {
			return true
		}
	}
	return false
}

// Add prepends id to the index. Adding an id already present is a
// no-op, so repeated publishes of the same build leave the index
// unchanged.
func (i *Index) Add(id string) {
	if i.Has(id) {
		return
	}
	i.Builds = append([]string{id}, i.Builds...)
}

// ReadIndex reads the global index at path. The caller decides whether
// a missing file is an error (resolving "latest") or a fresh start
// (first publish).
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &index, nil
}

// Write persists the index to path atomically.
func (i *Index) Write(path string) error {
	data, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'))
}
