package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
)

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionConfirmed SubmissionStatus = "confirmed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission records one operation handed off to the relay endpoint. It is
// the unit the receipt sweeper polls on until we learn the final state.
type Submission struct {
	// a unique sortable id identifying this submission in the entire system
	ID string `json:"id"`

	// sender account in EIP55 hex
	Sender string `json:"sender"`

	// the per-account operation nonce the submission consumed
	Nonce string `json:"nonce"`

	// canonical hash returned by the relay endpoint
	OperationHash string `json:"operation_hash"`

	Status SubmissionStatus `json:"status"`

	// set once the receipt arrives
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`

	CreatedAt   int64 `json:"created_at"`
	CompletedAt int64 `json:"completed_at,omitempty"`
}

// Generate a sorted unique id
func GenerateSubmissionID() string {
	return ulid.Make().String()
}

func NewSubmission(sender common.Address, nonce *big.Int, operationHash string) *Submission {
	n := "0"
	if nonce != nil {
		n = nonce.String()
	}
	return &Submission{
		ID:            GenerateSubmissionID(),
		Sender:        sender.Hex(),
		Nonce:         n,
		OperationHash: operationHash,
		Status:        SubmissionPending,
		CreatedAt:     time.Now().UnixMilli(),
	}
}

// StorageKey is where the record is persisted. The ulid prefix keeps keys
// time ordered so prefix scans return submissions in creation order.
func (s *Submission) StorageKey() []byte {
	return []byte(fmt.Sprintf("submission:%s", s.ID))
}

func SubmissionStorageKey(id string) []byte {
	return []byte(fmt.Sprintf("submission:%s", id))
}

func SubmissionKeyPrefix() []byte {
	return []byte("submission:")
}

// Complete finalizes the record from a confirmed or failed receipt.
func (s *Submission) Complete(status SubmissionStatus, txHash string, blockNumber uint64) {
	s.Status = status
	s.TxHash = txHash
	s.BlockNumber = blockNumber
	s.CompletedAt = time.Now().UnixMilli()
}

// Return a compact json ready to persist to storage
func (s *Submission) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

func SubmissionFromJSON(data []byte) (*Submission, error) {
	s := &Submission{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
