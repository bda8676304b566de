package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
)

// TokenMetadataService resolves ERC-20 decimals and symbols so operation
// builders can turn human-denominated amounts into minor units. It prefers a
// metadata HTTP API when one is configured and falls back to reading the
// token contract directly.
type TokenMetadataService struct {
	baseURL    string
	httpClient *resty.Client
	caller     delegate.ContractCaller
	logger     sdklogging.Logger

	cache    map[string]*TokenMetadata
	cacheMux sync.RWMutex
}

// TokenMetadata is the resolved shape of one token.
type TokenMetadata struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
}

type tokenMetadataResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NewTokenMetadataService builds a service instance. baseURL may be empty;
// then every lookup goes to the chain.
func NewTokenMetadataService(baseURL string, caller delegate.ContractCaller, logger sdklogging.Logger) *TokenMetadataService {
	return &TokenMetadataService{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
		caller: caller,
		logger: logger,
		cache:  map[string]*TokenMetadata{},
	}
}

// GetMetadata resolves decimals and symbol for token, caching forever:
// ERC-20 metadata is immutable in practice.
func (s *TokenMetadataService) GetMetadata(ctx context.Context, token common.Address) (*TokenMetadata, error) {
	key := strings.ToLower(token.Hex())

	s.cacheMux.RLock()
	if meta, ok := s.cache[key]; ok {
		s.cacheMux.RUnlock()
		return meta, nil
	}
	s.cacheMux.RUnlock()

	meta, err := s.fetch(ctx, token)
	if err != nil {
		return nil, err
	}

	s.cacheMux.Lock()
	s.cache[key] = meta
	s.cacheMux.Unlock()
	return meta, nil
}

func (s *TokenMetadataService) fetch(ctx context.Context, token common.Address) (*TokenMetadata, error) {
	if s.baseURL != "" {
		var body tokenMetadataResponse
		resp, err := s.httpClient.R().
			SetContext(ctx).
			SetResult(&body).
			Get(fmt.Sprintf("%s/tokens/%s", s.baseURL, strings.ToLower(token.Hex())))
		if err == nil && resp.IsSuccess() && body.Symbol != "" {
			return &TokenMetadata{Address: token, Symbol: body.Symbol, Decimals: body.Decimals}, nil
		}
		if err != nil {
			s.logger.Debugf("token metadata API failed for %s, falling back to chain: %v", token.Hex(), err)
		}
	}

	if s.caller == nil {
		return nil, fmt.Errorf("no metadata source available for token %s", token.Hex())
	}
	decimals, err := delegate.TokenDecimals(ctx, s.caller, token)
	if err != nil {
		return nil, err
	}
	symbol, err := delegate.TokenSymbol(ctx, s.caller, token)
	if err != nil {
		return nil, err
	}
	return &TokenMetadata{Address: token, Symbol: symbol, Decimals: int(decimals)}, nil
}

// ToMinorUnits converts a human-denominated decimal amount ("1.5") into the
// token's minor units using its resolved decimals.
func (s *TokenMetadataService) ToMinorUnits(ctx context.Context, token common.Address, amount string) (*big.Int, error) {
	meta, err := s.GetMetadata(ctx, token)
	if err != nil {
		return nil, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if dec.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %q", amount)
	}
	scaled := dec.Shift(int32(meta.Decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, meta.Decimals)
	}
	return scaled.BigInt(), nil
}

// FormatMinorUnits renders minor units as a human-denominated string.
func (s *TokenMetadataService) FormatMinorUnits(ctx context.Context, token common.Address, amount *big.Int) (string, error) {
	meta, err := s.GetMetadata(ctx, token)
	if err != nil {
		return "", err
	}
	return decimal.NewFromBigInt(amount, -int32(meta.Decimals)).String() + " " + meta.Symbol, nil
}

// CachedTokens lists tokens already resolved, for the status surface.
func (s *TokenMetadataService) CachedTokens() []TokenMetadata {
	s.cacheMux.RLock()
	defer s.cacheMux.RUnlock()
	return lo.Map(lo.Values(s.cache), func(m *TokenMetadata, _ int) TokenMetadata {
		return *m
	})
}
