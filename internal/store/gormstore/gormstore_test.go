package gormstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/codegen-ide/internal/store"
	"github.com/suPer8Hu/codegen-ide/internal/store/storetest"
)

func openTestStore(t *testing.T) store.Storage {
	t.Helper()
	s, err := Open("sqlite:" + filepath.Join(t.TempDir(), "ide.db"))
	require.NoError(t, err)
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, openTestStore)
}
