package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/ratelimiter"
)

// SignaturesBatchLimit is the page size requested from getSignaturesForAddress.
// A page shorter than this marks the end of the currently bounded range.
const SignaturesBatchLimit = 1000

// ErrTxNotFound is returned when the node has no record of the signature.
var ErrTxNotFound = errors.New("transaction not found")

// SignatureInfo is one entry of a getSignaturesForAddress page,
// ordered newest first.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Err       any    `json:"err"`
	Memo      string `json:"memo"`
	BlockTime *int64 `json:"blockTime"`
}

// TransactionResult is a decoded getTransaction response. Raw preserves the
// full encoded body for persistence; the typed fields cover what the loaders
// need for events and logging.
type TransactionResult struct {
	Slot      uint64           `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *TransactionMeta `json:"meta"`
	Raw       json.RawMessage  `json:"-"`
}

type TransactionMeta struct {
	Fee uint64 `json:"fee"`
	Err any    `json:"err"`
}

// SolanaClient speaks the Solana JSON-RPC API.
type SolanaClient struct {
	*Client
}

func NewSolanaClient(url string, auth *AuthConfig, timeout time.Duration, rl *ratelimiter.RateLimiter) *SolanaClient {
	return &SolanaClient{
		Client: NewClient(url, auth, timeout, rl),
	}
}

type signaturesForAddressOpts struct {
	Limit  int    `json:"limit,omitempty"`
	Before string `json:"before,omitempty"`
	Until  string `json:"until,omitempty"`
}

// GetSignaturesForAddress returns up to limit signatures for the address,
// newest first, bounded by the (before, until) keyset cursors. Empty cursor
// strings mean unbounded.
func (s *SolanaClient) GetSignaturesForAddress(ctx context.Context, address, before, until string, limit int) ([]SignatureInfo, error) {
	opts := signaturesForAddressOpts{
		Limit:  limit,
		Before: before,
		Until:  until,
	}
	resp, err := s.CallRPC(ctx, "getSignaturesForAddress", []any{address, opts})
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress failed: %w", err)
	}

	var page []SignatureInfo
	if err := json.Unmarshal(resp.Result, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signatures page: %w", err)
	}
	return page, nil
}

type getTransactionOpts struct {
	Encoding                       string `json:"encoding"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
}

// GetTransaction fetches the full transaction body for a signature.
// A null result from the node maps to ErrTxNotFound.
func (s *SolanaClient) GetTransaction(ctx context.Context, signature string) (*TransactionResult, error) {
	opts := getTransactionOpts{
		Encoding:                       "json",
		MaxSupportedTransactionVersion: 0,
	}
	resp, err := s.CallRPC(ctx, "getTransaction", []any{signature, opts})
	if err != nil {
		return nil, fmt.Errorf("getTransaction failed: %w", err)
	}
	if string(resp.Result) == "null" {
		return nil, ErrTxNotFound
	}

	var tx TransactionResult
	if err := json.Unmarshal(resp.Result, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	tx.Raw = resp.Result
	return &tx, nil
}

// GetSlot returns the current finalized slot.
func (s *SolanaClient) GetSlot(ctx context.Context) (uint64, error) {
	resp, err := s.CallRPC(ctx, "getSlot", []any{"finalized"})
	if err != nil {
		return 0, fmt.Errorf("getSlot failed: %w", err)
	}

	var slot uint64
	if err := json.Unmarshal(resp.Result, &slot); err != nil {
		return 0, fmt.Errorf("failed to unmarshal slot: %w", err)
	}
	return slot, nil
}

// IsHealthy reports whether the node answers getHealth.
func (s *SolanaClient) IsHealthy(ctx context.Context) bool {
	resp, err := s.CallRPC(ctx, "getHealth", nil)
	return err == nil && resp.Error == nil
}
