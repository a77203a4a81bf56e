package main

import (
	"fmt"
	"os"
	"time"

	"github.com/consensys/gnark/logger"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/election-ledger/circuits"
	"github.com/vocdoni/election-ledger/circuits/rangeproof"
	"github.com/vocdoni/election-ledger/log"
)

// rangeproof-setup compiles the range proof circuit, runs a Groth16 setup and
// writes the resulting artifacts to the artifact cache, named by hash. The
// printed hashes are the LEDGER_RANGEPROOF_* values of the node.
//
// The setup is not a ceremony: whoever runs it can forge proofs, so the
// output is for development and test deployments.
func main() {
	dir := flag.String("dir", circuits.BaseDir, "directory where the artifacts are written")
	logLevel := flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)
	logger.Set(*log.Logger())
	circuits.BaseDir = *dir

	start := time.Now()
	params, err := rangeproof.Setup()
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("range proof setup done", "took", time.Since(start).String())

	ccs, pk, vk, err := params.Encode()
	if err != nil {
		log.Fatal(err)
	}
	hashes := make(map[string]string, 3)
	for _, a := range []struct {
		env     string
		content []byte
	}{
		{"LEDGER_RANGEPROOF_CIRCUIT_HASH", ccs},
		{"LEDGER_RANGEPROOF_PROVING_KEY_HASH", pk},
		{"LEDGER_RANGEPROOF_VERIFYING_KEY_HASH", vk},
	} {
		h, err := circuits.StoreArtifact(a.content)
		if err != nil {
			log.Fatal(err)
		}
		hashes[a.env] = h.String()
		log.Infow("artifact stored", "name", a.env, "size", len(a.content), "hash", h.String())
	}
	for _, env := range []string{
		"LEDGER_RANGEPROOF_CIRCUIT_HASH",
		"LEDGER_RANGEPROOF_PROVING_KEY_HASH",
		"LEDGER_RANGEPROOF_VERIFYING_KEY_HASH",
	} {
		fmt.Fprintf(os.Stdout, "%s=%s\n", env, hashes[env])
	}
}
