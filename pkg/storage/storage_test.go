// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestStorageRoundTrip(t *testing.T) {
	require := require.New(t)
	s, err := NewStorage("memory", "")
	require.NoError(err)
	defer s.Close()

	require.NoError(s.Put([]byte("k"), []byte("v")))
	ok, err := s.Has([]byte("k"))
	require.NoError(err)
	require.True(ok)

	v, err := s.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), v)

	require.NoError(s.Delete([]byte("k")))
	ok, err = s.Has([]byte("k"))
	require.NoError(err)
	require.False(ok)
}

func TestNonceStores(t *testing.T) {
	s, err := NewStorage("memory", "")
	require.NoError(t, err)
	defer s.Close()

	for name, ns := range map[string]NonceStore{
		"mem": NewMemNonceStore(),
		"db":  NewDBNonceStore(s),
	} {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			n := uint256.NewInt(42)

			used, err := ns.Used("gateway", n)
			require.NoError(err)
			require.False(used)

			require.NoError(ns.MarkUsed("gateway", n))
			used, err = ns.Used("gateway", n)
			require.NoError(err)
			require.True(used)

			// Scopes are independent.
			used, err = ns.Used("bridge/3", n)
			require.NoError(err)
			require.False(used)
		})
	}
}
