package config

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v2"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
)

// Config is the fully-typed runtime configuration of the orchestrator. It is
// constructed once at startup and passed by reference into every component
// that needs ledger access; nothing reads it from a global.
type Config struct {
	Logger      sdklogging.Logger
	Environment sdklogging.LogLevel

	EthRpcUrl   string
	EthWsUrl    string
	RelayRpcUrl string

	ChainID           *big.Int
	SettlementAddress common.Address

	// RelayerPrivateKey pays for inclusion and is therefore the
	// fee-compensation payee. RelayerAddress is derived from it.
	RelayerPrivateKey *ecdsa.PrivateKey
	RelayerAddress    common.Address

	// SenderPrivateKey, when present, lets the orchestrator sign built
	// operations itself (demo mode). Production clients sign externally.
	SenderPrivateKey *ecdsa.PrivateKey

	HttpBindAddress string
	JwtSecret       []byte

	StoragePath string

	OracleCacheTTL time.Duration

	TokenMetadataURL string
}

// ConfigRaw mirrors the YAML file on disk.
type ConfigRaw struct {
	Environment sdklogging.LogLevel `yaml:"environment"`

	EthRpcUrl   string `yaml:"eth_rpc_url"`
	EthWsUrl    string `yaml:"eth_ws_url"`
	RelayRpcUrl string `yaml:"relay_rpc_url"`

	ChainID           int64  `yaml:"chain_id"`
	SettlementAddress string `yaml:"settlement_address"`

	RelayerPrivateKey string `yaml:"relayer_private_key"`
	SenderPrivateKey  string `yaml:"sender_private_key"`

	HttpBindAddress string `yaml:"http_bind_address"`
	JwtSecret       string `yaml:"jwt_secret"`

	StoragePath string `yaml:"storage_path"`

	OracleCacheTTLSeconds int `yaml:"oracle_cache_ttl_seconds"`

	TokenMetadataURL string `yaml:"token_metadata_url"`
}

// NewConfig loads, validates, and types the YAML config at configFilePath.
// Secrets may come from the environment instead of the file:
// RELAYER_PRIVATE_KEY, SENDER_PRIVATE_KEY, and JWT_SECRET override their
// YAML counterparts.
func NewConfig(configFilePath string) (*Config, error) {
	raw := ConfigRaw{}
	if configFilePath != "" {
		body, err := os.ReadFile(configFilePath)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", configFilePath, err)
		}
		if err := yaml.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", configFilePath, err)
		}
	}

	if raw.Environment == "" {
		raw.Environment = sdklogging.Production
	}
	logger, err := sdklogging.NewZapLogger(raw.Environment)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("RELAYER_PRIVATE_KEY"); v != "" {
		raw.RelayerPrivateKey = v
	}
	if v := os.Getenv("SENDER_PRIVATE_KEY"); v != "" {
		raw.SenderPrivateKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		raw.JwtSecret = v
	}

	if raw.RelayerPrivateKey == "" {
		return nil, fmt.Errorf("relayer_private_key is required")
	}
	relayerKey, err := crypto.HexToECDSA(strip0x(raw.RelayerPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("cannot parse relayer private key: %w", err)
	}

	var senderKey *ecdsa.PrivateKey
	if raw.SenderPrivateKey != "" {
		senderKey, err = crypto.HexToECDSA(strip0x(raw.SenderPrivateKey))
		if err != nil {
			return nil, fmt.Errorf("cannot parse sender private key: %w", err)
		}
	}

	if raw.SettlementAddress == "" {
		return nil, fmt.Errorf("settlement_address is required")
	}
	if !common.IsHexAddress(raw.SettlementAddress) {
		return nil, fmt.Errorf("settlement_address %q is not a hex address", raw.SettlementAddress)
	}

	if raw.ChainID == 0 {
		return nil, fmt.Errorf("chain_id is required")
	}

	cacheTTL := time.Duration(raw.OracleCacheTTLSeconds) * time.Second
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}

	storagePath := raw.StoragePath
	if storagePath == "" {
		storagePath = "/tmp/settlement-orchestrator"
	}

	return &Config{
		Logger:            logger,
		Environment:       raw.Environment,
		EthRpcUrl:         raw.EthRpcUrl,
		EthWsUrl:          raw.EthWsUrl,
		RelayRpcUrl:       raw.RelayRpcUrl,
		ChainID:           big.NewInt(raw.ChainID),
		SettlementAddress: common.HexToAddress(raw.SettlementAddress),
		RelayerPrivateKey: relayerKey,
		RelayerAddress:    crypto.PubkeyToAddress(relayerKey.PublicKey),
		SenderPrivateKey:  senderKey,
		HttpBindAddress:   raw.HttpBindAddress,
		JwtSecret:         []byte(raw.JwtSecret),
		StoragePath:       storagePath,
		OracleCacheTTL:    cacheTTL,
		TokenMetadataURL:  raw.TokenMetadataURL,
	}, nil
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}
