package circuits

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/types"
)

// CheckHashes enables the integrity check of the artifacts when they are
// loaded or downloaded. LEDGER_CHECK_HASHES=false (or 0) disables it.
var CheckHashes = true

// BaseDir is the local cache of artifacts, indexed by content hash. Defaults
// to LEDGER_ARTIFACTS_DIR or ~/.cache/election-ledger-artifacts.
var BaseDir string

// ErrArtifactNotFound is returned when an artifact is not in the local cache
// and no remote URL is provided.
var ErrArtifactNotFound = errors.New("artifact not found")

func init() {
	if v := os.Getenv("LEDGER_CHECK_HASHES"); v != "" {
		if strings.ToLower(v) == "false" || v == "0" {
			CheckHashes = false
		}
	}
	if dir := os.Getenv("LEDGER_ARTIFACTS_DIR"); dir != "" {
		BaseDir = dir
		return
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		log.Warnf("unable to access user home directory, using temporary directory: %v", err)
		BaseDir = filepath.Join(os.TempDir(), "election-ledger-artifacts")
		return
	}
	BaseDir = filepath.Join(home, ".cache", "election-ledger-artifacts")
}

// Artifact is a parameter file (circuit definition, proving or verifying key)
// identified by the sha256 of its content.
type Artifact struct {
	RemoteURL string
	Hash      types.HexBytes
	Content   types.HexBytes
}

// Load fills the artifact content from the local cache. If the artifact is
// not cached and a remote URL is set, it is downloaded first. The content is
// checked against the hash unless CheckHashes is false.
func (a *Artifact) Load(ctx context.Context) error {
	if len(a.Content) != 0 {
		return nil
	}
	if len(a.Hash) == 0 {
		return fmt.Errorf("artifact hash not provided")
	}
	content, err := readCached(a.Hash)
	if err != nil {
		return err
	}
	if content == nil {
		if a.RemoteURL == "" {
			return fmt.Errorf("%w: %x", ErrArtifactNotFound, a.Hash)
		}
		if err := download(ctx, a.Hash, a.RemoteURL); err != nil {
			return err
		}
		if content, err = readCached(a.Hash); err != nil {
			return err
		}
		if content == nil {
			return fmt.Errorf("%w after download: %x", ErrArtifactNotFound, a.Hash)
		}
	}
	a.Content = content
	return nil
}

// StoreArtifact writes content into the local cache and returns its hash, so
// it can be referenced by an Artifact later.
func StoreArtifact(content []byte) (types.HexBytes, error) {
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating the base directory: %w", err)
	}
	sum := sha256.Sum256(content)
	path := filepath.Join(BaseDir, hex.EncodeToString(sum[:]))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("error writing artifact %s: %w", path, err)
	}
	return sum[:], nil
}

// CircuitArtifacts groups the artifacts of a circuit: the constraint system,
// the proving key and the verifying key.
type CircuitArtifacts struct {
	circuitDefinition *Artifact
	provingKey        *Artifact
	verifyingKey      *Artifact

	once    sync.Once
	loadErr error
}

// NewCircuitArtifacts returns the artifacts of a circuit. Any of them can be
// nil, for example a verifier only needs the verifying key.
func NewCircuitArtifacts(circuit, provingKey, verifyingKey *Artifact) *CircuitArtifacts {
	return &CircuitArtifacts{
		circuitDefinition: circuit,
		provingKey:        provingKey,
		verifyingKey:      verifyingKey,
	}
}

// LoadAll loads every artifact. It only does the work once, later calls
// return the result of the first one.
func (ca *CircuitArtifacts) LoadAll(ctx context.Context) error {
	ca.once.Do(func() {
		for name, a := range map[string]*Artifact{
			"circuit definition": ca.circuitDefinition,
			"proving key":        ca.provingKey,
			"verifying key":      ca.verifyingKey,
		} {
			if a == nil {
				continue
			}
			if err := a.Load(ctx); err != nil {
				ca.loadErr = fmt.Errorf("error loading %s: %w", name, err)
				return
			}
		}
	})
	return ca.loadErr
}

// CircuitDefinition returns the loaded constraint system, or nil.
func (ca *CircuitArtifacts) CircuitDefinition() types.HexBytes {
	if ca.circuitDefinition == nil {
		return nil
	}
	return ca.circuitDefinition.Content
}

// ProvingKey returns the loaded proving key, or nil.
func (ca *CircuitArtifacts) ProvingKey() types.HexBytes {
	if ca.provingKey == nil {
		return nil
	}
	return ca.provingKey.Content
}

// VerifyingKey returns the loaded verifying key, or nil.
func (ca *CircuitArtifacts) VerifyingKey() types.HexBytes {
	if ca.verifyingKey == nil {
		return nil
	}
	return ca.verifyingKey.Content
}

// readCached returns nil content and nil error when the artifact is not in
// the cache.
func readCached(hash []byte) ([]byte, error) {
	path := filepath.Join(BaseDir, hex.EncodeToString(hash))
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	if CheckHashes {
		if sum := sha256.Sum256(content); !bytes.Equal(sum[:], hash) {
			return nil, fmt.Errorf("hash mismatch for file %s: expected %x, got %x", path, hash, sum)
		}
	}
	return content, nil
}

// countingReader keeps track of the bytes read so far.
type countingReader struct {
	r     io.Reader
	total atomic.Int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.total.Add(int64(n))
	return n, err
}

// download fetches fileURL into a .partial file and moves it into the cache
// once the hash matches.
func download(ctx context.Context, expectedHash []byte, fileURL string) error {
	if _, err := url.Parse(fileURL); err != nil {
		return fmt.Errorf("error parsing the file URL provided: %w", err)
	}
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return fmt.Errorf("error creating the base directory: %w", err)
	}
	path := filepath.Join(BaseDir, hex.EncodeToString(expectedHash))
	partialPath := path + ".partial"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("error creating the file request: %w", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error performing the request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("error downloading file %s: http status: %d", fileURL, res.StatusCode)
	}

	fd, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error opening artifact file: %w", err)
	}
	defer fd.Close()

	hasher := sha256.New()
	cr := &countingReader{r: res.Body}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.MultiWriter(fd, hasher), cr)
		done <- err
	}()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
wait:
	for {
		select {
		case err := <-done:
			if err != nil {
				os.Remove(partialPath)
				return fmt.Errorf("error copying data to file: %w", err)
			}
			break wait
		case <-ticker.C:
			log.Debugw("downloading artifact", "url", fileURL,
				"downloaded", fmt.Sprintf("%.2fMiB", float64(cr.total.Load())/(1024*1024)),
				"size", res.ContentLength)
		}
	}
	if CheckHashes {
		if computed := hasher.Sum(nil); !bytes.Equal(computed, expectedHash) {
			os.Remove(partialPath)
			return fmt.Errorf("hash mismatch: expected %x, got %x", expectedHash, computed)
		}
	}
	if err := os.Rename(partialPath, path); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}
	return nil
}
