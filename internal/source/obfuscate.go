package source

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PathObfuscator masks path components with keyed hashes while preserving
// directory structure, so embeddings of sensitive codebases never carry
// real names. The mapping file makes obfuscation reversible for display.
type PathObfuscator struct {
	mu          sync.Mutex
	key         []byte
	mappingFile string
	toOriginal  map[string]string
	toAlias     map[string]string
}

type obfuscationState struct {
	Key     string            `json:"key"`
	Mapping map[string]string `json:"mapping"` // alias -> original
}

// NewPathObfuscator loads or initialises the mapping stored alongside the
// persist directory. A fresh key is generated on first use.
func NewPathObfuscator(mappingFile string) (*PathObfuscator, error) {
	o := &PathObfuscator{
		mappingFile: mappingFile,
		toOriginal:  make(map[string]string),
		toAlias:     make(map[string]string),
	}

	data, err := os.ReadFile(mappingFile)
	if err == nil {
		var state obfuscationState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("parse path mapping %s: %w", mappingFile, err)
		}
		if o.key, err = hex.DecodeString(state.Key); err != nil {
			return nil, fmt.Errorf("decode obfuscation key: %w", err)
		}
		for alias, original := range state.Mapping {
			o.toOriginal[alias] = original
			o.toAlias[original] = alias
		}
		return o, nil
	}

	o.key = make([]byte, 32)
	if _, err := rand.Read(o.key); err != nil {
		return nil, err
	}
	return o, nil
}

// Obfuscate returns the alias for a relative path, hashing each component
// separately and keeping a short extension tag for type identification.
func (o *PathObfuscator) Obfuscate(relPath string) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if alias, ok := o.toAlias[relPath]; ok {
		return alias
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	hashed := make([]string, len(parts))
	for i, part := range parts {
		if i == len(parts)-1 && strings.Contains(part, ".") {
			idx := strings.LastIndex(part, ".")
			hashed[i] = o.hashComponent(part[:idx]) + "." + o.hashComponent(part[idx+1:])[:2]
			continue
		}
		hashed[i] = o.hashComponent(part)
	}
	alias := strings.Join(hashed, "/")

	o.toAlias[relPath] = alias
	o.toOriginal[alias] = relPath
	return alias
}

// Deobfuscate maps an alias back to the original path; unknown aliases are
// returned unchanged.
func (o *PathObfuscator) Deobfuscate(alias string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if original, ok := o.toOriginal[alias]; ok {
		return original
	}
	return alias
}

// Save writes the mapping file so aliases survive restarts.
func (o *PathObfuscator) Save() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := obfuscationState{
		Key:     hex.EncodeToString(o.key),
		Mapping: o.toOriginal,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(o.mappingFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(o.mappingFile, data, 0o600)
}

func (o *PathObfuscator) hashComponent(component string) string {
	mac := hmac.New(sha256.New, o.key)
	mac.Write([]byte(component))
	return hex.EncodeToString(mac.Sum(nil))[:8]
}
