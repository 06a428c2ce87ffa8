package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/common/errors"
)

func TestAddress(t *testing.T) {
	require := require.New(t)

	var a Address
	err := a.UnmarshalText([]byte("0102030405060708090a0b0c0d0e0f1011121314"))
	require.NoError(err, "UnmarshalText")
	require.EqualValues(1, a[0])
	require.EqualValues(0x14, a[AddressSize-1])

	text, err := a.MarshalText()
	require.NoError(err, "MarshalText")
	require.Equal("0102030405060708090a0b0c0d0e0f1011121314", string(text))

	err = a.UnmarshalText([]byte("0102"))
	require.ErrorIs(err, ErrInvalidArgument, "short address")
	err = a.UnmarshalText([]byte("not hex"))
	require.ErrorIs(err, ErrInvalidArgument, "malformed address")
}

func TestSystemAuthorizer(t *testing.T) {
	require := require.New(t)

	require.True(SystemAuthorizer.IsPrivileged(SystemAddress))
	require.False(SystemAuthorizer.IsPrivileged(Address{1}))

	var allowed Address
	allowed[0] = 0xaa
	auth := AuthorizerFunc(func(addr Address) bool { return addr == allowed })
	require.True(auth.IsPrivileged(allowed))
	require.False(auth.IsPrivileged(SystemAddress))
}

func TestErrorCodes(t *testing.T) {
	require := require.New(t)

	for code, expected := range map[uint32]error{
		1: ErrForbidden,
		2: ErrNotInitialized,
		3: ErrStorage,
		4: ErrInvalidArgument,
		5: ErrInvalidMethod,
	} {
		module, c := errors.Code(expected)
		require.Equal(ModuleName, module)
		require.Equal(code, c)
		require.Equal(expected, errors.FromCode(ModuleName, code, expected.Error()))
	}
}

func TestMethods(t *testing.T) {
	require := require.New(t)

	require.EqualValues("cetf.Constructor", MethodConstructor)
	require.EqualValues("cetf.EnqueueTag", MethodEnqueueTag)
	require.EqualValues("cetf.ClearTag", MethodClearTag)
	for _, m := range Methods {
		require.Equal(ModuleName, m.Module())
		require.NoError(m.SanityCheck())
	}
}
