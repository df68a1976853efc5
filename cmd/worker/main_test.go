package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gudang/internal/app"
	_ "github.com/odyssey-erp/gudang/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
