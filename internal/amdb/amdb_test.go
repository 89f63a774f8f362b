package amdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryLoadRegistered(t *testing.T) {
	db := NewInMemory()
	db.Register(Descriptor{ModuleID: 0xABCD, StackSizeBytes: 8192})

	d, err := db.Load(0xABCD)
	require.NoError(t, err)
	require.Equal(t, 8192, d.StackSizeBytes)
}

func TestInMemoryLoadUnregisteredFails(t *testing.T) {
	db := NewInMemory()
	_, err := db.Load(0x1234)
	require.Error(t, err)
}

func TestInMemoryRegisterOverwrites(t *testing.T) {
	db := NewInMemory()
	db.Register(Descriptor{ModuleID: 1, StackSizeBytes: 100})
	db.Register(Descriptor{ModuleID: 1, StackSizeBytes: 200})
	d, err := db.Load(1)
	require.NoError(t, err)
	require.Equal(t, 200, d.StackSizeBytes)
}
