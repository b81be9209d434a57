package compile

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// artifactVersion is embedded in every encoded artifact. Decoding an
// artifact written by an incompatible encoder fails rather than
// activating a malformed program.
const artifactVersion = 1

type artifactEnvelope struct {
	Version int
	Program *Program
}

// Encode serializes a program into the byte form the artifact store
// persists.
func Encode(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	env := artifactEnvelope{Version: artifactVersion, Program: p}
	if err := gob.NewEncoder(&buf).Encode(&env); err != nil {
		return nil, fmt.Errorf("encoding program %q: %w", p.Name, err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes an artifact back into an executable program.
func Decode(artifact []byte) (*Program, error) {
	var env artifactEnvelope
	if err := gob.NewDecoder(bytes.NewReader(artifact)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if env.Version != artifactVersion {
		return nil, fmt.Errorf("artifact version %d not supported", env.Version)
	}
	if env.Program == nil || env.Program.Root == nil {
		return nil, fmt.Errorf("artifact contains no program")
	}
	return env.Program, nil
}
