package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivoil/onewordstory/internal/failure"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return e.code }

type fakeProvider struct {
	accounts []common.Address
	err      error
	calls    []string
}

func (p *fakeProvider) Request(_ context.Context, result any, method string, _ ...any) error {
	p.calls = append(p.calls, method)
	if p.err != nil {
		return p.err
	}
	out, ok := result.(*[]common.Address)
	if !ok {
		return errors.New("unexpected result type")
	}
	*out = append([]common.Address(nil), p.accounts...)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAbsentProviderReportsProviderUnavailable(t *testing.T) {
	m := NewManager(nil, quietLogger())

	s, err := m.DetectExistingSession(context.Background())
	require.Error(t, err)
	assert.True(t, s.Absent())
	assert.Equal(t, failure.CodeProviderUnavailable, failure.CodeOf(err))
	assert.ErrorIs(t, err, ErrNoProvider)

	s, err = m.RequestSession(context.Background())
	require.Error(t, err)
	assert.True(t, s.Absent())
	assert.Equal(t, failure.CodeProviderUnavailable, failure.CodeOf(err))
}

func TestDetectExistingSession(t *testing.T) {
	t.Run("no authorized account", func(t *testing.T) {
		p := &fakeProvider{}
		m := NewManager(p, quietLogger())

		s, err := m.DetectExistingSession(context.Background())
		require.NoError(t, err)
		assert.True(t, s.Absent())
		assert.Equal(t, []string{MethodAccounts}, p.calls)
	})

	t.Run("authorized account", func(t *testing.T) {
		p := &fakeProvider{accounts: []common.Address{alice, bob}}
		m := NewManager(p, quietLogger())

		s, err := m.DetectExistingSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, alice, s.Address)
		assert.Equal(t, s, m.Current())
	})
}

func TestRequestSession(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
		code failure.Code
	}{
		{"user rejected", &fakeProvider{err: rpcError{code: 4001, msg: "User rejected the request."}}, failure.CodeUserRejected},
		{"rpc failure", &fakeProvider{err: rpcError{code: -32603, msg: "internal error"}}, failure.CodeRequestFailed},
		{"empty accounts", &fakeProvider{}, failure.CodeRequestFailed},
		{"cancelled", &fakeProvider{err: context.Canceled}, failure.CodeRequestFailed},
		{"transport down", &fakeProvider{err: errors.New("dial tcp 127.0.0.1:8545: connection refused")}, failure.CodeProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.p, quietLogger())
			s, err := m.RequestSession(context.Background())
			require.Error(t, err)
			assert.True(t, s.Absent())
			assert.Equal(t, tt.code, failure.CodeOf(err))
			assert.Equal(t, []string{MethodRequestAccounts}, tt.p.calls)
		})
	}

	t.Run("success", func(t *testing.T) {
		m := NewManager(&fakeProvider{accounts: []common.Address{bob}}, quietLogger())
		s, err := m.RequestSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bob, s.Address)
		assert.Equal(t, "0x0000...0B0B", s.Short())
	})
}

func TestCheckAccounts(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{alice}}
	m := NewManager(p, quietLogger())
	ctx := context.Background()

	// No session yet: nothing to compare against.
	_, changed, err := m.CheckAccounts(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = m.DetectExistingSession(ctx)
	require.NoError(t, err)

	s, changed, err := m.CheckAccounts(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, alice, s.Address)

	p.accounts = []common.Address{bob}
	s, changed, err = m.CheckAccounts(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, bob, s.Address)

	p.accounts = nil
	s, changed, err = m.CheckAccounts(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, s.Absent())
	assert.True(t, m.Current().Absent())
}

func TestSetProviderDropsSession(t *testing.T) {
	m := NewManager(&fakeProvider{accounts: []common.Address{alice}}, quietLogger())
	_, err := m.DetectExistingSession(context.Background())
	require.NoError(t, err)

	m.SetProvider(&fakeProvider{})
	assert.True(t, m.Current().Absent())
}
