package hooks

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStartDefaults(t *testing.T) {
	assert.Equal(t, DefaultStartArgs(), Hooks{}.StartDefaults())

	h := Hooks{DefaultArgs: func(a *StartArgs) {
		a.ProviderVersion = "stable"
		a.Static = true
	}}
	got := h.StartDefaults()
	assert.Equal(t, "stable", got.ProviderVersion)
	assert.True(t, got.Static)
	assert.Equal(t, "development", got.Mode)
}

func TestNilMiddlewareHooks(t *testing.T) {
	r := gin.New()
	assert.NotPanics(t, func() {
		Hooks{}.App(r)
		Hooks{}.Test(r)
	})

	called := 0
	h := Hooks{AppMiddleware: func(*gin.Engine) { called++ }, TestMiddleware: func(*gin.Engine) { called += 10 }}
	h.App(r)
	h.Test(r)
	assert.Equal(t, 11, called)
}
