package calldata

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/multisig/digest"
)

var (
	testAddrs = Addresses{
		Multisig:      common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Timelock:      common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		FeeDispatcher: common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"),
	}
	addrA = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	addrB = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	addrC = common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")
)

func TestSelectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give Selector
		want string
	}{
		{give: SelectorAddOwner, want: "0x0d582f13"},
		{give: SelectorRemoveOwner, want: "0xf8dc5dd9"},
		{give: SelectorSwapOwner, want: "0xe318b52b"},
		{give: SelectorSchedule, want: "0x01d5062a"},
		{give: SelectorAddReceiver, want: "0x69d83ed1"},
		{give: SelectorRemoveReceiver, want: "0x6552d8b4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.give.String())
	}
}

func TestEncode_AddOwner(t *testing.T) {
	t.Parallel()

	got, err := Encode(multisig.OwnerAdd{Owner: addrA, Threshold: 3})
	require.NoError(t, err)

	want := "0x0d582f13" +
		"000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" +
		"0000000000000000000000000000000000000000000000000000000000000003"
	assert.Equal(t, want, hexutil.Encode(got))
}

func TestEncode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    multisig.Operation
		wantErr string
	}{
		{
			name:    "add owner with zero threshold",
			give:    multisig.OwnerAdd{Owner: addrA},
			wantErr: "threshold must be greater than 0",
		},
		{
			name:    "remove owner with zero threshold",
			give:    multisig.OwnerRemove{PrevOwner: addrA, Owner: addrB},
			wantErr: "threshold must be greater than 0",
		},
		{
			name:    "unknown receiver kind",
			give:    multisig.FeeDispatcherOp{Kind: 9, Receiver: addrA},
			wantErr: "unknown receiver change kind 9",
		},
		{
			name:    "nil operation",
			give:    nil,
			wantErr: "cannot encode nil operation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Encode(tt.give)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testAddrs, big.NewInt(1337))

	tests := []struct {
		name string
		give multisig.Operation
		to   common.Address
	}{
		{name: "add owner", give: multisig.OwnerAdd{Owner: addrA, Threshold: 2}, to: testAddrs.Multisig},
		{
			name: "remove owner",
			give: multisig.OwnerRemove{PrevOwner: addrA, Owner: addrB, Threshold: 1},
			to:   testAddrs.Multisig,
		},
		{
			name: "swap owner",
			give: multisig.OwnerSwap{PrevOwner: addrA, OldOwner: addrB, NewOwner: addrC},
			to:   testAddrs.Multisig,
		},
		{
			name: "add receiver",
			give: multisig.FeeDispatcherOp{Kind: multisig.AddReceiver, Receiver: addrC},
			to:   testAddrs.FeeDispatcher,
		},
		{
			name: "remove receiver",
			give: multisig.FeeDispatcherOp{Kind: multisig.RemoveReceiver, Receiver: addrC},
			to:   testAddrs.FeeDispatcher,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := Encode(tt.give)
			require.NoError(t, err)

			got, err := codec.Decode(data, Hint{To: &tt.to})
			require.NoError(t, err)
			assert.Equal(t, tt.give, got.Operation)
			assert.Nil(t, got.FeeDispatcher)
			assert.Nil(t, got.TxHash)

			// The selector alone routes the call when the destination is not known.
			routed, err := codec.Decode(data, Hint{})
			require.NoError(t, err)
			assert.Equal(t, tt.give, routed.Operation)
		})
	}
}

func TestRoundTrip_Schedule(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testAddrs, big.NewInt(1337))
	op := multisig.FeeDispatcherOp{Kind: multisig.AddReceiver, Receiver: addrB}

	schedule, data, err := ScheduleReceiverChange(testAddrs.FeeDispatcher, op, big.NewInt(60))
	require.NoError(t, err)
	assert.Equal(t,
		common.HexToHash("0x8bb0040918b0133d93f57bfb0e7713310777fdae0aa01f1bc43d305208e6ddd9"), schedule.ID)

	got, err := codec.Decode(data, Hint{To: &testAddrs.Timelock})
	require.NoError(t, err)

	ts, ok := got.Timelock()
	require.True(t, ok)
	assert.Equal(t, testAddrs.FeeDispatcher, ts.Target)
	assert.Equal(t, "0", ts.Value.String())
	assert.Equal(t, "60", ts.Delay.String())
	assert.Equal(t, common.Hash{}, ts.Predecessor)
	assert.Equal(t, common.Hash{}, ts.Salt)
	assert.Equal(t, schedule.Data, ts.Data)
	assert.Equal(t, schedule.ID, ts.ID)

	require.NotNil(t, got.FeeDispatcher)
	assert.Equal(t, op, *got.FeeDispatcher)
}

func TestDecode_ScheduleOfOpaqueCall(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testAddrs, nil)
	inner := hexutil.MustDecode("0xdeadbeef01")
	data, err := Encode(NewSchedule(addrA, big.NewInt(7), inner, common.Hash{}, common.Hash{}, big.NewInt(1)))
	require.NoError(t, err)

	got, err := codec.Decode(data, Hint{})
	require.NoError(t, err)

	ts, ok := got.Timelock()
	require.True(t, ok)
	assert.Equal(t, inner, ts.Data)
	assert.Nil(t, got.FeeDispatcher)
}

func TestDecode_ScheduleForOtherTarget(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testAddrs, nil)
	inner, err := Encode(multisig.FeeDispatcherOp{Kind: multisig.RemoveReceiver, Receiver: addrB})
	require.NoError(t, err)
	data, err := Encode(NewSchedule(addrA, nil, inner, common.Hash{}, common.Hash{}, big.NewInt(1)))
	require.NoError(t, err)

	// With a known destination the scheduled target has to be the fee dispatcher.
	got, err := codec.Decode(data, Hint{To: &testAddrs.Timelock})
	require.NoError(t, err)
	assert.Nil(t, got.FeeDispatcher)

	// Self routed schedules are matched on the inner selector alone.
	got, err = codec.Decode(data, Hint{})
	require.NoError(t, err)
	require.NotNil(t, got.FeeDispatcher)
	assert.Equal(t, multisig.RemoveReceiver, got.FeeDispatcher.Kind)
}

func TestDecode_TxHash(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testAddrs, big.NewInt(1337))
	data, err := Encode(multisig.OwnerAdd{Owner: addrA, Threshold: 3})
	require.NoError(t, err)

	nonce := uint64(5)
	got, err := codec.Decode(data, Hint{To: &testAddrs.Multisig, Nonce: &nonce})
	require.NoError(t, err)

	require.NotNil(t, got.TxHash)
	want := digest.TxDigest(testAddrs.Multisig, big.NewInt(0), data, nonce, big.NewInt(1337), testAddrs.Multisig)
	assert.Equal(t, want, *got.TxHash)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	codec := NewCodec(testAddrs, big.NewInt(1337))
	addOwner, err := Encode(multisig.OwnerAdd{Owner: addrA, Threshold: 3})
	require.NoError(t, err)

	zeroThreshold := hexutil.MustDecode("0x0d582f13" +
		"000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" +
		"0000000000000000000000000000000000000000000000000000000000000000")

	tests := []struct {
		name    string
		give    []byte
		to      *common.Address
		wantErr string
	}{
		{name: "empty", give: nil, wantErr: "need at least 4"},
		{name: "short", give: []byte{0x0d, 0x58}, wantErr: "need at least 4"},
		{name: "unknown selector", give: hexutil.MustDecode("0xdeadbeef"), wantErr: "unknown selector 0xdeadbeef"},
		{name: "truncated arguments", give: addOwner[:40], wantErr: "want 64"},
		{name: "trailing bytes", give: append(append([]byte{}, addOwner...), 0x00), wantErr: "want 64"},
		{name: "zero threshold", give: zeroThreshold, wantErr: "out of range"},
		{
			name:    "selector of another contract",
			give:    addOwner,
			to:      &testAddrs.Timelock,
			wantErr: "belongs to the multisig",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := codec.Decode(tt.give, Hint{To: tt.to})
			require.ErrorIs(t, err, multisig.ErrDecodeFailed)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAddresses_ContractAt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ContractMultisig, testAddrs.ContractAt(testAddrs.Multisig))
	assert.Equal(t, ContractTimelock, testAddrs.ContractAt(testAddrs.Timelock))
	assert.Equal(t, ContractFeeDispatcher, testAddrs.ContractAt(testAddrs.FeeDispatcher))
	assert.Equal(t, ContractUnknown, testAddrs.ContractAt(addrA))
	assert.Equal(t, ContractUnknown, Addresses{}.ContractAt(common.Address{}))
}
