package payment

import (
	"testing"
	"time"

	"github.com/TruongSon421/storefront-checkout/pkg/config"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectRequiresConfirmation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{current: time.Now()}
	gate := NewRedirectGate(config.RedirectConfig{Cooldown: 30 * time.Second}, clock.now)

	err := gate.TryRedirect()
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	gate.Confirm()
	assert.NoError(t, gate.TryRedirect())
}

func TestRedirectCooldownBlocksSecondNavigation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{current: time.Now()}
	gate := NewRedirectGate(config.RedirectConfig{Cooldown: 30 * time.Second}, clock.now)
	gate.Confirm()

	require.NoError(t, gate.TryRedirect())

	clock.advance(29 * time.Second)
	err := gate.TryRedirect()
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	clock.advance(2 * time.Second)
	assert.NoError(t, gate.TryRedirect())
}

func TestRedirectResetClosesGate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{current: time.Now()}
	gate := NewRedirectGate(config.RedirectConfig{Cooldown: 30 * time.Second}, clock.now)
	gate.Confirm()
	require.NoError(t, gate.TryRedirect())

	gate.Reset()
	clock.advance(time.Minute)
	err := gate.TryRedirect()
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "reset gate needs a fresh confirmation")
}
