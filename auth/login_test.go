package auth

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedispatch/multisig-ops/chain/evm/wallet"
	"github.com/feedispatch/multisig-ops/multisig"
)

var (
	testDomain = Domain{ChainID: big.NewInt(1337)}
	testAt     = time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("UTC+8", 8*60*60))
)

func newTestWallet(t *testing.T) *wallet.KeyWallet {
	t.Helper()

	w, err := wallet.NewRandomKeyWallet(testDomain.ChainID)
	require.NoError(t, err)

	return w
}

// signerFunc adapts a function to Signer.
type signerFunc struct {
	addr common.Address
	sign func(apitypes.TypedData) ([]byte, error)
}

func (s signerFunc) Address() common.Address { return s.addr }

func (s signerFunc) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	return s.sign(data)
}

func TestNewLogin(t *testing.T) {
	t.Parallel()

	addr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	got := NewLogin(addr, testAt)

	assert.Equal(t, Login{Address: addr, LoginAt: "2026-01-01T19:04:05.006Z"}, got)
}

func TestTypedData(t *testing.T) {
	t.Parallel()

	l := NewLogin(common.HexToAddress("0x01"), testAt)
	data := TypedData(testDomain, l)

	assert.Equal(t, "Login", data.PrimaryType)
	assert.Equal(t, DomainName, data.Domain.Name)
	assert.Equal(t, DomainVersion, data.Domain.Version)
	assert.Equal(t, DefaultVerifyingContract.Hex(), data.Domain.VerifyingContract)
	assert.Equal(t, int64(1337), (*big.Int)(data.Domain.ChainId).Int64())
	assert.Equal(t, l.LoginAt, data.Message["login_at"])

	other := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	data = TypedData(Domain{ChainID: big.NewInt(1), VerifyingContract: other}, l)
	assert.Equal(t, other.Hex(), data.Domain.VerifyingContract)
}

func TestHash(t *testing.T) {
	t.Parallel()

	l := NewLogin(common.HexToAddress("0x01"), testAt)
	want, err := Hash(testDomain, l)
	require.NoError(t, err)

	for range 10 {
		got, err := Hash(testDomain, l)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	tests := []struct {
		name   string
		domain Domain
		login  Login
	}{
		{name: "chain id", domain: Domain{ChainID: big.NewInt(1)}, login: l},
		{name: "verifying contract", domain: Domain{ChainID: big.NewInt(1337), VerifyingContract: common.HexToAddress("0x02")}, login: l},
		{name: "address", domain: testDomain, login: Login{Address: common.HexToAddress("0x03"), LoginAt: l.LoginAt}},
		{name: "login_at", domain: testDomain, login: Login{Address: l.Address, LoginAt: "2026-01-01T19:04:05.007Z"}},
	}
	for _, tt := range tests {
		got, err := Hash(tt.domain, tt.login)
		require.NoError(t, err)
		assert.NotEqual(t, want, got, "changing %s must change the hash", tt.name)
	}
}

func TestSignLogin(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t)

	got, err := SignLogin(t.Context(), w, testDomain, testAt)
	require.NoError(t, err)
	assert.Equal(t, NewLogin(w.Address(), testAt), got.Login)
	require.Len(t, got.Signature, 65)
	assert.Contains(t, []byte{27, 28}, got.Signature[64])
	assert.Equal(t, "0x", got.SignatureHex()[:2])

	signer, err := Recover(testDomain, got.Login, got.Signature)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), signer)
}

func TestSignLogin_Errors(t *testing.T) {
	t.Parallel()

	impostor := newTestWallet(t)
	addr := newTestWallet(t).Address()

	tests := []struct {
		name    string
		give    Signer
		wantErr error
	}{
		{
			name: "user rejects",
			give: signerFunc{addr: addr, sign: func(apitypes.TypedData) ([]byte, error) {
				return nil, multisig.ErrUserRejected
			}},
			wantErr: multisig.ErrUserRejected,
		},
		{
			name: "signed by another key",
			give: signerFunc{addr: addr, sign: func(data apitypes.TypedData) ([]byte, error) {
				return impostor.SignTypedData(context.Background(), data)
			}},
			wantErr: multisig.ErrSignatureVerificationFailed,
		},
		{
			name: "truncated signature",
			give: signerFunc{addr: addr, sign: func(apitypes.TypedData) ([]byte, error) {
				return make([]byte, 64), nil
			}},
			wantErr: multisig.ErrSignatureVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := SignLogin(t.Context(), tt.give, testDomain, testAt)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyLogin(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t)
	signed, err := SignLogin(t.Context(), w, testDomain, testAt)
	require.NoError(t, err)

	// Raw 0/1 recovery ids are accepted as well.
	rawV := append([]byte(nil), signed.Signature...)
	rawV[64] -= 27

	tests := []struct {
		name    string
		domain  Domain
		login   Login
		sig     []byte
		wantErr string
	}{
		{name: "valid", domain: testDomain, login: signed.Login, sig: signed.Signature},
		{name: "valid raw v", domain: testDomain, login: signed.Login, sig: rawV},
		{
			name:    "other time",
			domain:  testDomain,
			login:   NewLogin(w.Address(), testAt.Add(time.Second)),
			sig:     signed.Signature,
			wantErr: "signature verification failed",
		},
		{
			name:    "other chain",
			domain:  Domain{ChainID: big.NewInt(1)},
			login:   signed.Login,
			sig:     signed.Signature,
			wantErr: "signature verification failed",
		},
		{
			name:    "short signature",
			domain:  testDomain,
			login:   signed.Login,
			sig:     signed.Signature[:10],
			wantErr: "signature is 10 bytes, want 65",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := VerifyLogin(tt.domain, tt.login, tt.sig)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, multisig.ErrSignatureVerificationFailed)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
