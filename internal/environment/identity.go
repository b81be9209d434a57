package environment

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/loader"
	"github.com/stencilhq/stencil/internal/version"
)

// nativeCodec reports whether this build can persist compiled programs
// and re-activate them from the artifact store. It participates in
// cache identity so builds with and without the codec never trust each
// other's artifacts.
const nativeCodec = true

// TemplateCacheKey derives the stable identity of "this template name,
// compiled under this extension composition and this engine version".
// Pure and deterministic: identical inputs always yield the identical
// identity, and any change to state that affects compiled output (the
// loader cache key, the extension signature, the codec capability, the
// optimization level, the engine version) changes the identity for
// every name.
//
// The optional index distinguishes embedded sub-templates sharing a
// base name; it is appended as a readable suffix outside the hash.
func (e *Environment) TemplateCacheKey(name string, index ...int) (string, error) {
	e.mu.Lock()
	ld := e.loader
	e.mu.Unlock()
	return e.deriveIdentity(ld, name, index)
}

// deriveIdentity is TemplateCacheKey against an explicit loader, usable
// while the environment mutex is held.
func (e *Environment) deriveIdentity(ld loader.Loader, name string, index []int) (string, error) {
	if name == "" {
		return "", stencilerrors.NewLogicError("environment.TemplateCacheKey", "template name must not be empty")
	}
	if len(index) > 1 {
		return "", stencilerrors.NewLogicError("environment.TemplateCacheKey", "at most one embedded index may be given")
	}
	if len(index) == 1 && index[0] < 0 {
		return "", stencilerrors.NewLogicError("environment.TemplateCacheKey", "embedded index must not be negative")
	}

	perName, err := ld.CacheKey(name)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(perName))
	h.Write([]byte{0})
	h.Write([]byte(e.registry.Signature()))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(nativeCodec)))
	h.Write([]byte{0})
	// The optimization level changes the compiled tree, so artifacts
	// built at different levels never share an identity.
	h.Write([]byte(strconv.Itoa(e.optimizations)))
	h.Write([]byte{0})
	h.Write([]byte(version.GetVersion()))

	identity := hex.EncodeToString(h.Sum(nil))
	if len(index) == 1 {
		identity += "_" + strconv.Itoa(index[0])
	}
	return identity, nil
}

// IsTemplateFresh decides whether an artifact cached at the given Unix
// timestamp is still valid: the extension composition must not have
// changed since it was written AND the loader must report the source
// unchanged. Either condition failing invalidates the artifact. Only
// consulted when auto-reload is enabled.
func (e *Environment) IsTemplateFresh(name string, ts int64) bool {
	e.mu.Lock()
	ld := e.loader
	e.mu.Unlock()
	return e.isFresh(ld, name, ts)
}

func (e *Environment) isFresh(ld loader.Loader, name string, ts int64) bool {
	if e.registry.LastModified() > ts {
		return false
	}
	return ld.IsFresh(name, ts)
}
