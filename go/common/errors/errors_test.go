package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

const testModule = "test/errors"

var (
	errTestA = New(testModule, 1, "test: a")
	errTestB = New(testModule, 2, "test: b")
)

func TestCodedErrors(t *testing.T) {
	require := require.New(t)

	module, code := Code(errTestA)
	require.Equal(testModule, module)
	require.EqualValues(1, code)

	module, code = Code(nil)
	require.Equal("", module)
	require.EqualValues(CodeNoError, code)

	module, code = Code(fmt.Errorf("plain"))
	require.Equal(UnknownModule, module)
	require.EqualValues(1, code)

	require.Panics(func() { New(testModule, 1, "duplicate") })
	require.Panics(func() { New(testModule, CodeNoError, "reserved") })
}

func TestContext(t *testing.T) {
	require := require.New(t)

	err := WithContext(errTestB, "height 5")
	require.True(Is(err, errTestB))
	require.Equal("test: b: height 5", err.Error())
	require.Equal("height 5", Context(err))
	require.Equal("", Context(errTestB))
	require.Equal(errTestB, WithContext(errTestB, ""))

	module, code := Code(fmt.Errorf("outer: %w", err))
	require.Equal(testModule, module)
	require.EqualValues(2, code)
}

func TestFromCode(t *testing.T) {
	require := require.New(t)

	require.Equal(errTestA, FromCode(testModule, 1, errTestA.Error()))

	wrapped := WithContext(errTestB, "extra")
	rebuilt := FromCode(testModule, 2, wrapped.Error())
	require.True(Is(rebuilt, errTestB))
	require.Equal("extra", Context(rebuilt))

	unknown := FromCode("other", 42, "remote failure")
	require.Equal("remote failure", unknown.Error())
	module, code := Code(unknown)
	require.Equal("other", module)
	require.EqualValues(42, code)
}
