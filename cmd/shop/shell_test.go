package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsmaine/boilerparts/config"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/widget"
)

func newShellWidget(t *testing.T) *widget.Widget {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Checkout.ReadyInterval = time.Millisecond
	cfg.Provider.Payer = "Grace"

	w, err := widget.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Shutdown() })
	return w
}

func TestShell_session(t *testing.T) {
	w := newShellWidget(t)
	script := strings.Join([]string{
		"add p1 Brass Fitting 4.50",
		"add p2 Gasket 1.25",
		"inc 0",
		"dec 1",
		"add p3 Hose 2.00",
		"rm 1",
		"open",
		"show",
		"pay card",
		"quit",
		"add never reached 1.00",
	}, "\n")
	var out bytes.Buffer

	require.NoError(t, runShell(context.Background(), w, strings.NewReader(script), &out))

	assert.Empty(t, w.Items())
	assert.Equal(t, money.Amount(0), w.Total())
	assert.Contains(t, out.String(), "checkout: rendered")
	assert.Contains(t, out.String(), "items=3 total=$11.00")
	assert.Contains(t, out.String(), "alert: Payment completed by Grace")
}

func TestShell_errors(t *testing.T) {
	w := newShellWidget(t)
	script := "add p1\ninc x\nrm 3\npay card\nbogus\n"
	var out bytes.Buffer

	require.NoError(t, runShell(context.Background(), w, strings.NewReader(script), &out))

	got := out.String()
	assert.Contains(t, got, "usage: add")
	assert.Contains(t, got, `bad index "x"`)
	assert.Contains(t, got, "no card button rendered")
	assert.Contains(t, got, `unknown command "bogus"`)
}
