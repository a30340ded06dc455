package creact

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal(t *testing.T) {
	t.Run("read and write", func(t *testing.T) {
		count, setCount := CreateSignal(0)
		assert.Equal(t, 0, count())

		setCount(10)
		assert.Equal(t, 10, count())
	})

	t.Run("concurrent read/write", func(t *testing.T) {
		var wg sync.WaitGroup
		count, setCount := CreateSignal(0)

		wg.Go(func() {
			setCount(count() + 1)
		})

		wg.Wait()
		assert.Equal(t, 1, count())
	})

	t.Run("zero values", func(t *testing.T) {
		readErr, writeErr := CreateSignal[error](nil)
		assert.Nil(t, readErr())

		writeErr(errors.New("oops"))
		assert.EqualError(t, readErr(), "oops")

		writeErr(nil)
		assert.Nil(t, readErr())
	})

	t.Run("custom equals suppresses equal writes", func(t *testing.T) {
		log := []string{}

		type point struct{ x, y int }
		p, setP := CreateSignal(point{0, 0}, func(a, b point) bool { return a.x == b.x })

		CreateEffect(func() {
			log = append(log, "ran")
			p()
		})

		setP(point{0, 5}) // equal by x, should not retrigger
		setP(point{1, 5}) // different x, should retrigger

		assert.Equal(t, []string{"ran", "ran"}, log)
	})
}

func TestComputed(t *testing.T) {
	t.Run("derives value from signal", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(1)
		double := CreateMemo(func() int {
			log = append(log, "doubling")
			return count() * 2
		})
		plustwo := CreateMemo(func() int {
			log = append(log, "adding")
			return double() + 2
		})

		assert.Equal(t, 1, count())
		assert.Equal(t, 2, double())
		assert.Equal(t, 4, plustwo())

		setCount(10)
		assert.Equal(t, 10, count())
		assert.Equal(t, 20, double())
		assert.Equal(t, 22, plustwo())

		assert.Equal(t, []string{"doubling", "adding", "doubling", "adding"}, log)
	})

	t.Run("does not propagate when value unchanged", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(1)
		a := CreateMemo(func() int {
			log = append(log, "running a")
			return count() * 0
		})
		b := CreateMemo(func() int {
			log = append(log, "running b")
			return a() + 1
		})

		a()
		b()

		setCount(10)

		assert.Equal(t, []string{"running a", "running b", "running a"}, log)
	})
}
