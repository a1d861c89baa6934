// Package fixtures embeds the sample registry extract.
package fixtures

import (
	"bytes"
	_ "embed"

	"github.com/rpattn/wellhistory/internal/repository"
)

//go:embed sample.yaml
var sample []byte

// Sample decodes the embedded registry extract.
func Sample() (repository.Fixture, error) {
	return repository.ReadFixture(bytes.NewReader(sample))
}
