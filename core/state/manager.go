package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"crowdvault/storage"
)

// Manager provides keyed access to ledger state. Values are RLP encoded and
// keys are hashed with keccak256 before hitting the backing store so arbitrary
// length keys remain safe. Absence of a key is reported as (false, nil), never
// as a default value.
//
// Manager also keeps the fungible token balance books used by the escrow and
// dispute engines; transfers are all-or-nothing within the enclosing call.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	errNilManager = errors.New("state: manager not configured")

	tokenPrefix   = []byte("token:")
	balancePrefix = []byte("balance:")
	vaultPrefix   = []byte("vault:")
)

// TokenMetadata describes a registered fungible token.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, len(tokenPrefix)+len(symbol))
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(symbol string, addr [20]byte) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return ethcrypto.Keccak256(buf)
}

// ModuleVaultAddress derives the deterministic vault address that holds funds
// owned by the named module.
func ModuleVaultAddress(module string) [20]byte {
	digest := ethcrypto.Keccak256(append(append([]byte(nil), vaultPrefix...), module...))
	var addr [20]byte
	copy(addr[:], digest[len(digest)-20:])
	return addr
}

func normalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("state: token symbol required")
	}
	return trimmed, nil
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// RegisterToken stores the metadata for a fungible token. Registration is
// idempotent for identical definitions.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	meta := &TokenMetadata{Symbol: normalized, Name: strings.TrimSpace(name), Decimals: decimals}
	existing, err := m.Token(normalized)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Name != meta.Name || existing.Decimals != meta.Decimals {
			return fmt.Errorf("state: token %s already registered with different metadata", normalized)
		}
		return nil
	}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.db.Put(tokenMetadataKey(normalized), encoded)
}

// Token returns the metadata for the supplied symbol, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	if m == nil || m.db == nil {
		return nil, errNilManager
	}
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	data, err := m.get(tokenMetadataKey(normalized))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// BalanceOf reports the balance held by addr for the given token. Unknown
// accounts hold zero.
func (m *Manager) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	if m == nil || m.db == nil {
		return nil, errNilManager
	}
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	data, err := m.get(balanceKey(normalized, addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (m *Manager) writeBalance(symbol string, addr [20]byte, balance *big.Int) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return m.db.Put(balanceKey(symbol, addr), encoded)
}

// Credit mints amount onto addr's balance. Used when external value enters the
// ledger (deposits observed on the funding rail) and by tests.
func (m *Manager) Credit(symbol string, addr [20]byte, amount *big.Int) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: credit amount must be positive")
	}
	balance, err := m.BalanceOf(normalized, addr)
	if err != nil {
		return err
	}
	return m.writeBalance(normalized, addr, new(big.Int).Add(balance, amount))
}

// Transfer moves amount between accounts atomically with the enclosing
// operation. A zero amount is a no-op; negative amounts are rejected.
func (m *Manager) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	normalized, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if amount == nil {
		return fmt.Errorf("state: transfer amount required")
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBalance, err := m.BalanceOf(normalized, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient %s balance", normalized)
	}
	toBalance, err := m.BalanceOf(normalized, to)
	if err != nil {
		return err
	}
	if err := m.writeBalance(normalized, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return m.writeBalance(normalized, to, new(big.Int).Add(toBalance, amount))
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilManager
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.db.Put(hashed, encoded)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
