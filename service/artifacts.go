package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vocdoni/election-ledger/circuits/rangeproof"
	"github.com/vocdoni/election-ledger/config"
	"github.com/vocdoni/election-ledger/log"
)

// ErrNoParameters is returned when no range proof artifacts are configured
// and development parameters are not allowed.
var ErrNoParameters = fmt.Errorf("range proof artifacts not configured")

// LoadParameters loads the range proof parameters referenced by the
// configuration, downloading the missing artifacts within timeout. If none
// are configured and dev is true, an in-process setup is used instead.
func LoadParameters(artifacts config.RangeProofArtifacts, dev bool, timeout time.Duration) (*rangeproof.Parameters, error) {
	ca := artifacts.CircuitArtifacts()
	if ca == nil {
		if !dev {
			return nil, ErrNoParameters
		}
		log.Warnw("using in-process range proof parameters, not suitable for production")
		return rangeproof.DevParameters()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return rangeproof.LoadParameters(ctx, ca)
}
