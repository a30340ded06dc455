package creact

import (
	"errors"
	"testing"

	"github.com/creact-labs/creact/internal/reactive"
	"github.com/stretchr/testify/assert"
)

func TestCreateRoot(t *testing.T) {
	t.Run("runs function and disposes", func(t *testing.T) {
		log := []string{}

		dispose := CreateRoot(func(dispose func()) func() {
			CreateEffect(func() {
				log = append(log, "effect")
				OnCleanup(func() { log = append(log, "cleanup") })
			})
			return dispose
		})

		log = append(log, "ran")
		dispose()
		log = append(log, "disposed")

		assert.Equal(t, []string{"effect", "ran", "cleanup", "disposed"}, log)
	})

	t.Run("catches panics raised under the root", func(t *testing.T) {
		log := []string{}

		var setErr func(error)
		dispose := CreateRoot(func(dispose func()) func() {
			owner := reactive.GetRuntime().CurrentOwner()
			owner.OnError(func(err any) {
				log = append(log, "caught")
			})

			var errSig func() error
			errSig, setErr = CreateSignal[error](nil)

			CreateRoot(func(dispose func()) any {
				CreateEffect(func() {
					if e := errSig(); e != nil {
						panic(e)
					}
				})
				return nil
			})

			return dispose
		})
		defer dispose()

		setErr(errors.New("oops"))

		assert.Equal(t, []string{"caught"}, log)
	})
}

func TestContext(t *testing.T) {
	t.Run("store value", func(t *testing.T) {
		ctx := CreateContext(0)
		assert.Equal(t, 0, UseContext(ctx))
	})

	t.Run("inherit value from parent owner", func(t *testing.T) {
		ctx := CreateContext("default")

		CreateRoot(func(dispose func()) any {
			defer dispose()

			ctx.Set("parent value")

			CreateRoot(func(dispose func()) any {
				defer dispose()
				assert.Equal(t, "parent value", UseContext(ctx))
				return nil
			})

			return nil
		})

		assert.Equal(t, "default", UseContext(ctx))
	})
}
