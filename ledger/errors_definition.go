//nolint:lll
package ledger

import "fmt"

// Error codes in the 40001-49999 range are caused by the request, the ones in
// the 50001-59999 range by the ledger itself. Codes are never reused, new
// errors are appended after the last one of their range.
var (
	ErrVoterNotFound          = Error{Code: 40001, Err: fmt.Errorf("voter not found"), userMsg: "Voter not found."}
	ErrAlreadyVoted           = Error{Code: 40002, Err: fmt.Errorf("voter already voted"), userMsg: "You have already voted in this election."}
	ErrInvalidKeyFormat       = Error{Code: 40003, Err: fmt.Errorf("invalid key format"), userMsg: "The key provided is not valid."}
	ErrDuplicateTransaction   = Error{Code: 40004, Err: fmt.Errorf("duplicate transaction"), userMsg: "This vote has already been recorded."}
	ErrGenesisAlreadyExists   = Error{Code: 40005, Err: fmt.Errorf("genesis block already exists"), userMsg: "The election is already initialized."}
	ErrElectionFinalized      = Error{Code: 40006, Err: fmt.Errorf("election finalized"), userMsg: "The election is closed."}
	ErrElectionNotFound       = Error{Code: 40007, Err: fmt.Errorf("election not found"), userMsg: "Election not found."}
	ErrElectionNotOpen        = Error{Code: 40008, Err: fmt.Errorf("election not open"), userMsg: "The election is not open for voting."}
	ErrElectionNotInitialized = Error{Code: 40009, Err: fmt.Errorf("election not initialized"), userMsg: "The election has not started yet."}
	ErrCandidateNotFound      = Error{Code: 40010, Err: fmt.Errorf("candidate not found"), userMsg: "Candidate not found."}
	ErrKeyMismatch            = Error{Code: 40011, Err: fmt.Errorf("key does not match the registered voter key"), userMsg: "The key provided is not valid."}
	ErrTransactionNotFound    = Error{Code: 40012, Err: fmt.Errorf("transaction not found"), userMsg: "Vote not found."}
	ErrTransactionNotPending  = Error{Code: 40013, Err: fmt.Errorf("transaction not pending"), userMsg: "Vote already included in a block."}
	ErrAlreadyExists          = Error{Code: 40014, Err: fmt.Errorf("record already exists"), userMsg: "Already registered."}
	ErrInvalidArgument        = Error{Code: 40015, Err: fmt.Errorf("invalid argument"), userMsg: "Invalid request."}

	ErrProofGenerationFailed = Error{Code: 50001, Err: fmt.Errorf("proof generation failed"), userMsg: "Your vote could not be processed, please try again."}
	ErrChainConflict         = Error{Code: 50002, Err: fmt.Errorf("chain tip changed concurrently"), Retryable: true, userMsg: "The ledger is busy, please try again."}
	ErrStorageUnavailable    = Error{Code: 50003, Err: fmt.Errorf("storage unavailable"), Retryable: true, userMsg: "The service is temporarily unavailable, please try again."}
	ErrNoActiveAuthority     = Error{Code: 50004, Err: fmt.Errorf("no active authority with a signing key")}
	ErrChainCorrupted        = Error{Code: 50005, Err: fmt.Errorf("chain verification failed")}
	ErrInternal              = Error{Code: 50006, Err: fmt.Errorf("internal error")}
)
