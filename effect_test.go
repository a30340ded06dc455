package creact

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffect(t *testing.T) {
	t.Run("runs on signal change with cleanup", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(0)
		log = append(log, fmt.Sprintf("%d", count()))

		CreateEffect(func() {
			log = append(log, fmt.Sprintf("changed %d", count()))

			OnCleanup(func() {
				log = append(log, "cleanup")
			})
		})

		setCount(10)
		log = append(log, fmt.Sprintf("%d", count()))
		setCount(20)

		assert.Equal(t, []string{
			"0",
			"changed 0",
			"cleanup",
			"changed 10",
			"10",
			"cleanup",
			"changed 20",
		}, log)
	})

	t.Run("writes to another signal", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(0)
		double, setDouble := CreateSignal(0)

		CreateEffect(func() {
			setDouble(count() * 2)
		})

		CreateEffect(func() {
			log = append(log, fmt.Sprintf("changed %d", double()))

			OnCleanup(func() {
				log = append(log, "cleanup")
			})
		})

		setCount(10)

		assert.Equal(t, []string{"changed 0", "cleanup", "changed 20"}, log)
	})

	t.Run("nested effects", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(0)

		CreateEffect(func() {
			count()
			log = append(log, "running")

			CreateEffect(func() {
				log = append(log, "running nested")

				OnCleanup(func() {
					log = append(log, "cleanup nested")
				})
			})

			OnCleanup(func() {
				log = append(log, "cleanup")
			})
		})

		setCount(10)

		assert.Equal(t, []string{
			"running",
			"running nested",
			"cleanup nested",
			"cleanup",
			"running",
			"running nested",
		}, log)
	})

	t.Run("diamond dependency", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(0)
		double := CreateMemo(func() int { return count() * 2 })
		quad := CreateMemo(func() int { return count() * 4 })

		CreateEffect(func() {
			log = append(log, fmt.Sprintf("running %d %d", double(), quad()))

			OnCleanup(func() {
				log = append(log, fmt.Sprintf("cleanup %d %d", double(), quad()))
			})
		})

		setCount(10)

		assert.Equal(t, []string{
			"running 0 0",
			"cleanup 20 40",
			"running 20 40",
		}, log)
	})

	t.Run("deps change between runs", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(0)

		initialized := false
		CreateEffect(func() {
			log = append(log, "running")
			if !initialized {
				count()
			}
			initialized = true
		})

		setCount(1)
		setCount(2) // no longer a dependency, should not retrigger

		assert.Equal(t, []string{"running", "running"}, log)
	})
}

func TestUntrack(t *testing.T) {
	t.Run("does not track reads", func(t *testing.T) {
		log := []string{}

		count, setCount := CreateSignal(0)

		CreateEffect(func() {
			c := Untrack(count)
			log = append(log, fmt.Sprintf("effect %d", c))
		})

		setCount(10)

		assert.Equal(t, []string{"effect 0"}, log)
	})
}
