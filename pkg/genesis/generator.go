package genesis

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/luxfi/log"

	"github.com/fogbed/iotanet/pkg/core"
)

// BlobFileName is the genesis blob the external tool must produce.
const BlobFileName = "genesis.blob"

// Keystore candidates, in preference order. Which one the tool writes has
// varied between releases.
var keystoreNames = []string{"iota.keystore", "benchmark.keystore"}

// Artifact is the immutable output of one genesis run: the shared blob,
// per-role key-bearing templates, and the funding keystore.
type Artifact struct {
	Dir                string
	BlobPath           string
	KeystorePath       string
	ValidatorTemplates []string
	GatewayTemplate    string
}

// HasKeystore reports whether the tool produced a funding keystore.
func (a *Artifact) HasKeystore() bool {
	return a.KeystorePath != ""
}

// Generator invokes the external genesis tool. Generation happens exactly
// once per network lifecycle; callers must clear the working directory before
// retrying, the tool is not safe to blindly re-run.
type Generator struct {
	binary     string
	withFaucet bool
	log        log.Logger
}

// NewGenerator creates a generator around the given tool binary.
func NewGenerator(binary string, withFaucet bool, logger log.Logger) *Generator {
	return &Generator{
		binary:     binary,
		withFaucet: withFaucet,
		log:        logger,
	}
}

// Generate runs the genesis tool and discovers its outputs. committeeSize is
// the validator count; the tool embeds committee membership in the blob.
func (g *Generator) Generate(ctx context.Context, workingDir string, committeeSize int) (*Artifact, error) {
	if committeeSize < 1 {
		return nil, core.GenesisError{Msg: "committee size must be at least 1"}
	}
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return nil, core.GenesisError{Msg: "failed to create working dir", Err: err}
	}

	args := []string{
		"genesis",
		"--working-dir", workingDir,
		"--force",
		"--committee-size", strconv.Itoa(committeeSize),
	}
	if g.withFaucet {
		args = append(args, "--with-faucet")
	}
	g.log.Info("Generating genesis", "committee", committeeSize, "dir", workingDir)
	g.log.Debug("Genesis command", "binary", g.binary, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, g.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, core.GenesisError{Msg: "genesis tool failed", Stderr: stderr.String(), Err: err}
	}

	blobPath := filepath.Join(workingDir, BlobFileName)
	if _, err := os.Stat(blobPath); err != nil {
		// A reported-successful run without the blob is still a failure.
		return nil, core.GenesisError{Msg: "genesis blob not produced at " + blobPath, Stderr: stderr.String()}
	}

	artifact, err := discoverArtifact(workingDir, blobPath)
	if err != nil {
		return nil, err
	}
	g.log.Info("Genesis generated",
		"blob", artifact.BlobPath,
		"validatorTemplates", len(artifact.ValidatorTemplates),
		"gatewayTemplate", artifact.GatewayTemplate != "",
		"keystore", artifact.HasKeystore())
	return artifact, nil
}

// discoverArtifact scans the working directory for the per-role templates and
// the keystore. Output naming has varied release to release, so the scan is
// recursive and tolerant; the gateway template may be absent.
func discoverArtifact(workingDir, blobPath string) (*Artifact, error) {
	var yamls []string
	err := filepath.WalkDir(workingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			yamls = append(yamls, path)
		}
		return nil
	})
	if err != nil {
		return nil, core.GenesisError{Msg: "failed to scan working dir", Err: err}
	}
	sort.Strings(yamls)

	artifact := &Artifact{Dir: workingDir, BlobPath: blobPath}
	for _, path := range yamls {
		base := strings.ToLower(filepath.Base(path))
		switch {
		case strings.Contains(base, "fullnode"):
			if artifact.GatewayTemplate == "" {
				artifact.GatewayTemplate = path
			}
		case strings.Contains(base, "client"), strings.Contains(base, "iota_config"):
			// client-side configs, not node templates
		default:
			artifact.ValidatorTemplates = append(artifact.ValidatorTemplates, path)
		}
	}
	if len(artifact.ValidatorTemplates) == 0 {
		return nil, core.GenesisError{Msg: "no validator templates found in " + workingDir}
	}

	for _, name := range keystoreNames {
		candidate := filepath.Join(workingDir, name)
		if _, err := os.Stat(candidate); err == nil {
			artifact.KeystorePath = candidate
			break
		}
	}
	return artifact, nil
}

// ValidatorTemplate returns the template for the i-th validator, cycling when
// the tool produced fewer templates than the committee has members.
func (a *Artifact) ValidatorTemplate(i int) string {
	return a.ValidatorTemplates[i%len(a.ValidatorTemplates)]
}
